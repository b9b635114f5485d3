package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
	"github.com/muntasirraihan/orleans/metric"
	"github.com/muntasirraihan/orleans/natsclient"
	"github.com/muntasirraihan/orleans/pkg/buffer"
	"github.com/muntasirraihan/orleans/pkg/retry"
)

// subjectSpace derives the NATS subjects for one deployment and client.
type subjectSpace struct {
	ingress    string
	register   string
	unregister string
	typemap    string
	streams    string
	inbox      string
}

func newSubjectSpace(deploymentID string, clientGUID uuid.UUID) subjectSpace {
	prefix := "orleans." + deploymentID
	return subjectSpace{
		ingress:    prefix + ".gateway.ingress",
		register:   prefix + ".gateway.observers.register",
		unregister: prefix + ".gateway.observers.unregister",
		typemap:    prefix + ".gateway.typemap",
		streams:    prefix + ".gateway.streams",
		inbox:      prefix + ".client." + clientGUID.String(),
	}
}

// observerRequest is the control payload for observer (un)registration.
type observerRequest struct {
	GrainID    grain.ID  `json:"grain_id"`
	ClientGUID uuid.UUID `json:"client_guid"`
}

// controlAck is the gateway's reply to a control request.
type controlAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NATSTransportDeps holds construction dependencies for the NATS transport.
type NATSTransportDeps struct {
	Config          *config.ClientConfig
	ClientGUID      uuid.UUID
	Generation      int32
	GatewayManager  *GatewayManager
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// NATSTransport is the proxied gateway channel over NATS. Outbound traffic
// publishes to the deployment's ingress subject; inbound traffic arrives on
// the client's inbox subject and is buffered per category until the pump
// collects it.
type NATSTransport struct {
	cfg        *config.ClientConfig
	clientGUID uuid.UUID
	generation int32
	gateways   *GatewayManager
	subjects   subjectSpace
	logger     *slog.Logger
	metrics    *metric.Metrics

	nc  *natsclient.Client
	sub *nats.Subscription

	buffers map[message.Category]buffer.Buffer[*message.Message]

	mu       sync.Mutex
	started  bool
	stopped  bool
	draining atomic.Bool
	address  grain.SiloAddress
}

var _ Transport = (*NATSTransport)(nil)

// NewNATSTransport constructs the transport. No I/O happens until Start.
func NewNATSTransport(deps NATSTransportDeps) (*NATSTransport, error) {
	if deps.Config == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"NATSTransport", "NewNATSTransport", "config validation")
	}
	if deps.GatewayManager == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"NATSTransport", "NewNATSTransport", "gateway manager validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-transport")
	}

	var coreMetrics *metric.Metrics
	if deps.MetricsRegistry != nil {
		coreMetrics = deps.MetricsRegistry.CoreMetrics()
	}

	t := &NATSTransport{
		cfg:        deps.Config,
		clientGUID: deps.ClientGUID,
		generation: deps.Generation,
		gateways:   deps.GatewayManager,
		subjects:   newSubjectSpace(deps.Config.DeploymentID, deps.ClientGUID),
		logger:     logger,
		metrics:    coreMetrics,
		buffers:    make(map[message.Category]buffer.Buffer[*message.Message]),
	}

	for _, category := range []message.Category{
		message.CategoryApplication, message.CategorySystem, message.CategoryPing,
	} {
		buf, err := buffer.NewCircularBuffer[*message.Message](deps.Config.InboundQueueCapacity,
			buffer.WithDropCallback[*message.Message](func(m *message.Message) {
				logger.Warn("Inbound queue overflow, dropping message", "message", m.String())
				if coreMetrics != nil {
					coreMetrics.RecordDropped("inbound_overflow")
				}
			}),
		)
		if err != nil {
			return nil, errors.Wrap(err, "NATSTransport", "NewNATSTransport", "inbound buffer creation")
		}
		t.buffers[category] = buf
	}

	return t, nil
}

// Start resolves the gateway list, connects, and subscribes the inbox.
func (t *NATSTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil // idempotent
	}
	if t.stopped {
		return errors.WrapInvalid(errors.ErrRuntimeStopped, "NATSTransport", "Start", "restart check")
	}

	refreshCtx, cancel := context.WithTimeout(ctx, t.cfg.GatewayInitTimeout)
	defer cancel()
	if err := t.gateways.Refresh(refreshCtx); err != nil {
		return errors.Wrap(err, "NATSTransport", "Start", "gateway resolution")
	}

	if err := t.connectLocked(ctx); err != nil {
		return err
	}

	t.started = true
	t.logger.Info("Transport started",
		"gateway", t.nc.URL(),
		"inbox", t.subjects.inbox,
		"generation", t.generation)
	return nil
}

// connectLocked dials the next gateway and subscribes the inbox.
// Caller holds t.mu.
func (t *NATSTransport) connectLocked(ctx context.Context) error {
	gateway := t.gateways.NextGateway()
	if gateway == "" {
		return errors.WrapTransient(errors.ErrNoGateways, "NATSTransport", "connect", "gateway selection")
	}

	nc, err := natsclient.NewClient(gateway,
		natsclient.WithClientName(fmt.Sprintf("grain-client-%s", t.clientGUID)),
		natsclient.WithTimeout(t.cfg.ConnectionTimeout),
		natsclient.WithDisconnectCallback(func(error) {
			if t.metrics != nil {
				t.metrics.RecordGatewayStatus(false)
			}
		}),
		natsclient.WithReconnectCallback(func() {
			if t.metrics != nil {
				t.metrics.RecordGatewayStatus(true)
				t.metrics.RecordGatewayReconnect()
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "NATSTransport", "connect", "client construction")
	}

	connectCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectionTimeout)
	defer cancel()
	err = retry.Do(connectCtx, retry.Quick(), func() error {
		return nc.Connect(connectCtx)
	})
	if err != nil {
		nc.Close()
		return errors.WrapTransient(err, "NATSTransport", "connect", "gateway connect")
	}

	sub, err := nc.Subscribe(t.subjects.inbox, t.handleInbound)
	if err != nil {
		nc.Close()
		return errors.Wrap(err, "NATSTransport", "connect", "inbox subscription")
	}

	endpoint, err := nc.LocalAddress()
	if err != nil {
		endpoint = t.cfg.DNSHostName
	}

	t.nc = nc
	t.sub = sub
	t.address = grain.SiloAddress{Endpoint: endpoint, Generation: t.generation}
	if t.metrics != nil {
		t.metrics.RecordGatewayStatus(true)
		if rtt, err := nc.RTT(); err == nil {
			t.metrics.RecordGatewayRTT(rtt)
		}
	}
	return nil
}

// handleInbound decodes one wire message and buffers it by category.
func (t *NATSTransport) handleInbound(m *nats.Msg) {
	msg, err := message.Decode(m.Data)
	if err != nil {
		t.logger.Warn("Dropping undecodable inbound message", "error", err)
		if t.metrics != nil {
			t.metrics.RecordDropped("decode_failure")
		}
		return
	}

	buf, ok := t.buffers[msg.Category]
	if !ok {
		t.logger.Warn("Dropping message with unknown category", "category", int(msg.Category))
		if t.metrics != nil {
			t.metrics.RecordDropped("unknown_category")
		}
		return
	}

	if err := buf.Write(msg); err != nil {
		t.logger.Warn("Inbound buffer rejected message", "error", err)
	}
}

// SendMessage publishes a message to the gateway ingress subject.
func (t *NATSTransport) SendMessage(msg *message.Message) error {
	if t.draining.Load() {
		return errors.WrapInvalid(errors.ErrShuttingDown, "NATSTransport", "SendMessage", "draining check")
	}

	t.mu.Lock()
	nc := t.nc
	started := t.started
	t.mu.Unlock()

	if !started || nc == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSTransport", "SendMessage", "connection check")
	}

	data, err := message.Encode(msg)
	if err != nil {
		return err
	}
	if err := nc.Publish(t.subjects.ingress, data); err != nil {
		return errors.WrapTransient(err, "NATSTransport", "SendMessage", "gateway publish")
	}
	return nil
}

// WaitMessage blocks for the next message of the category. Returns nil on
// cancellation or stop.
func (t *NATSTransport) WaitMessage(ctx context.Context, category message.Category) *message.Message {
	buf, ok := t.buffers[category]
	if !ok {
		return nil
	}
	msg, ok := buf.ReadWait(ctx)
	if !ok {
		return nil
	}
	return msg
}

// control performs a request/reply control exchange with the gateway.
func (t *NATSTransport) control(ctx context.Context, subject string, payload any, out any) error {
	t.mu.Lock()
	nc := t.nc
	t.mu.Unlock()
	if nc == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSTransport", "control", "connection check")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapInvalid(err, "NATSTransport", "control", "control payload serialization")
	}

	reply, err := nc.Request(ctx, subject, data)
	if err != nil {
		return errors.WrapTransient(err, "NATSTransport", "control", "gateway request")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return errors.WrapInvalid(err, "NATSTransport", "control", "control reply parsing")
	}
	return nil
}

// RegisterObserver announces a client-addressable grain id to the gateway.
func (t *NATSTransport) RegisterObserver(ctx context.Context, id grain.ID) error {
	var ack controlAck
	req := observerRequest{GrainID: id, ClientGUID: t.clientGUID}
	if err := t.control(ctx, t.subjects.register, req, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return errors.WrapTransient(fmt.Errorf("gateway rejected observer registration: %s", ack.Error),
			"NATSTransport", "RegisterObserver", "gateway acknowledgment")
	}
	return nil
}

// UnregisterObserver withdraws an observer registration.
func (t *NATSTransport) UnregisterObserver(ctx context.Context, id grain.ID) error {
	var ack controlAck
	req := observerRequest{GrainID: id, ClientGUID: t.clientGUID}
	if err := t.control(ctx, t.subjects.unregister, req, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return errors.WrapTransient(fmt.Errorf("gateway rejected observer unregistration: %s", ack.Error),
			"NATSTransport", "UnregisterObserver", "gateway acknowledgment")
	}
	return nil
}

// GetTypeCodeMap fetches the interface/type-code map from the gateway.
func (t *NATSTransport) GetTypeCodeMap(ctx context.Context) (grain.InterfaceMap, error) {
	var m grain.InterfaceMap
	if err := t.control(ctx, t.subjects.typemap, struct{}{}, &m); err != nil {
		return grain.InterfaceMap{}, err
	}
	return m, nil
}

// GetImplicitStreamSubscriberTable fetches the stream subscriber table.
func (t *NATSTransport) GetImplicitStreamSubscriberTable(ctx context.Context) (StreamSubscriberTable, error) {
	var table StreamSubscriberTable
	if err := t.control(ctx, t.subjects.streams, struct{}{}, &table); err != nil {
		return StreamSubscriberTable{}, err
	}
	return table, nil
}

// MyAddress returns the locally bound endpoint. Errors before Start.
func (t *NATSTransport) MyAddress() (grain.SiloAddress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.address.IsZero() {
		return grain.SiloAddress{}, errors.WrapInvalid(errors.ErrNotStarted,
			"NATSTransport", "MyAddress", "transport state check")
	}
	return t.address, nil
}

// PrepareToStop stops accepting outbound messages ahead of Stop.
func (t *NATSTransport) PrepareToStop() {
	t.draining.Store(true)
}

// Stop tears the channel down. Idempotent.
func (t *NATSTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil
	}
	t.stopped = true
	t.draining.Store(true)

	for _, buf := range t.buffers {
		_ = buf.Close()
	}

	if t.sub != nil {
		_ = t.sub.Unsubscribe()
		t.sub = nil
	}
	if t.nc != nil {
		if err := t.nc.Drain(); err != nil {
			t.logger.Warn("Drain failed during stop", "error", err)
		}
		t.nc.Close()
		t.nc = nil
	}
	if t.metrics != nil {
		t.metrics.RecordGatewayStatus(false)
	}

	t.logger.Info("Transport stopped")
	return nil
}

// Disconnect severs the gateway connection without tearing down buffers.
func (t *NATSTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sub != nil {
		_ = t.sub.Unsubscribe()
		t.sub = nil
	}
	if t.nc != nil {
		t.nc.Close()
		t.nc = nil
	}
	if t.metrics != nil {
		t.metrics.RecordGatewayStatus(false)
	}
	return nil
}

// Reconnect re-establishes a severed connection.
func (t *NATSTransport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return errors.WrapInvalid(errors.ErrRuntimeStopped, "NATSTransport", "Reconnect", "stopped check")
	}
	if t.nc != nil {
		return nil
	}
	return t.connectLocked(ctx)
}

// GatewayManager exposes the gateway list used by this transport.
func (t *NATSTransport) GatewayManager() *GatewayManager {
	return t.gateways
}
