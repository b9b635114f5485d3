package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/muntasirraihan/orleans/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected      = stderrors.New("not connected to NATS")
	ErrConnectionTimeout = stderrors.New("connection timeout")
	ErrClientClosed      = stderrors.New("nats client closed")
)

// Status holds runtime status information for the NATS client
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Reconnects      int32
	RTT             time.Duration
}

// Client manages a NATS connection for the gateway transport
type Client struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   Logger

	conn *nats.Conn
	js   jetstream.JetStream

	lastFailure atomic.Value // stores time.Time
	reconnects  atomic.Int32

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	// Callbacks
	onDisconnect func(error)
	onReconnect  func()

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:    url,
		logger: &defaultLogger{},
		// Sensible defaults
		maxReconnects: -1, // infinite
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.lastFailure.Store(time.Time{})

	c.logger.Debugf("Created NATS client for %s", url)

	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// GetConnection returns the current NATS connection
func (c *Client) GetConnection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// SetConnection sets the NATS connection (for testing)
func (c *Client) SetConnection(conn *nats.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	if conn != nil && conn.IsConnected() {
		c.setStatus(StatusConnected)
	}
}

// IsHealthy returns true if the connection is healthy
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the total connection failure count
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Reconnects returns how many times the connection was re-established
func (c *Client) Reconnects() int32 {
	return c.reconnects.Load()
}

func (c *Client) recordFailure() {
	c.failures.Add(1)
	c.lastFailure.Store(time.Now())
}

// buildConnectionOptions builds NATS connection options from client configuration
func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
	}

	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}

	return opts
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.recordFailure()
	c.setStatus(StatusReconnecting)
	if err != nil {
		c.logger.Errorf("NATS disconnected: %v", err)
	}
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

func (c *Client) handleReconnect(nc *nats.Conn) {
	c.reconnects.Add(1)
	c.setStatus(StatusConnected)
	c.logger.Printf("NATS reconnected to %s", nc.ConnectedUrl())
	if c.onReconnect != nil {
		c.onReconnect()
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if !c.closed.Load() {
		c.setStatus(StatusDisconnected)
	}
}

// Connect establishes the connection to the NATS server
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	c.setStatus(StatusConnecting)
	c.logger.Printf("Connecting to NATS at %s", c.url)

	conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
	if err != nil {
		c.recordFailure()
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "NATS connect")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "JetStream init")
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	// Respect caller cancellation that raced the connect
	if ctx.Err() != nil {
		c.Close()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connect cancelled")
	}

	return nil
}

// JetStream returns the JetStream context
func (c *Client) JetStream() jetstream.JetStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.js
}

// Publish publishes data to a subject
func (c *Client) Publish(subject string, data []byte) error {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "NATS publish")
	}
	return nil
}

// Request performs a request/reply exchange on a subject
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Request", "NATS request")
	}
	return msg.Data, nil
}

// Subscribe subscribes to a subject with a message handler
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	sub, err := conn.Subscribe(subject, handler)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Subscribe", "NATS subscribe")
	}
	return sub, nil
}

// RTT returns the round-trip time to the server
func (c *Client) RTT() (time.Duration, error) {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// LocalAddress returns the local endpoint of the connection
func (c *Client) LocalAddress() (string, error) {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return "", ErrNotConnected
	}
	addr := conn.LocalAddr()
	return addr, nil
}

// GetStatus returns current status information
func (c *Client) GetStatus() *Status {
	lastFailure := c.lastFailure.Load().(time.Time)

	status := &Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: lastFailure,
		Reconnects:      c.reconnects.Load(),
	}

	conn := c.GetConnection()
	if conn != nil && conn.IsConnected() {
		if rtt, err := conn.RTT(); err == nil {
			status.RTT = rtt
		}
	}

	return status
}

// WaitForConnection waits for the connection to become healthy
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-ticker.C:
			if c.IsHealthy() {
				return nil
			}
		}
	}
}

// Drain flushes pending traffic and closes the connection gracefully
func (c *Client) Drain() error {
	conn := c.GetConnection()
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		return errors.WrapTransient(err, "Client", "Drain", "NATS drain")
	}
	return nil
}

// Close closes the connection. Idempotent.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Swap(true) {
		return
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setStatus(StatusClosed)
}
