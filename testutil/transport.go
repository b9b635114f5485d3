package testutil

import (
	"context"
	"sync"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
	"github.com/muntasirraihan/orleans/transport"
)

// FakeTransport is an in-memory gateway channel. Outbound messages are
// recorded; tests inject inbound traffic with Deliver.
type FakeTransport struct {
	// Address is returned by MyAddress after Start.
	Address grain.SiloAddress

	// TypeMap is returned by GetTypeCodeMap.
	TypeMap grain.InterfaceMap

	// Streams is returned by GetImplicitStreamSubscriberTable.
	Streams transport.StreamSubscriberTable

	// SendHook, when set, intercepts SendMessage. Returning an error
	// simulates a gateway publish failure.
	SendHook func(*message.Message) error

	// RegisterErr / UnregisterErr simulate control-plane failures.
	RegisterErr   error
	UnregisterErr error

	mu           sync.Mutex
	started      bool
	stopped      bool
	sent         []*message.Message
	registered   []grain.ID
	unregistered []grain.ID

	inbound map[message.Category]chan *message.Message
	closed  chan struct{}

	gateways *transport.GatewayManager
}

var _ transport.Transport = (*FakeTransport)(nil)

// NewFakeTransport creates a fake with a default address and empty maps.
func NewFakeTransport() *FakeTransport {
	ft := &FakeTransport{
		Address: grain.SiloAddress{Endpoint: "inproc://test", Generation: -1},
		TypeMap: grain.InterfaceMap{Interfaces: map[int32]grain.InterfaceDescriptor{}},
		inbound: make(map[message.Category]chan *message.Message),
		closed:  make(chan struct{}),
	}
	for _, c := range []message.Category{
		message.CategoryApplication, message.CategorySystem, message.CategoryPing,
	} {
		ft.inbound[c] = make(chan *message.Message, 1024)
	}
	ft.gateways = transport.NewGatewayManager(&staticGateways{urls: []string{"inproc://test"}})
	return ft
}

type staticGateways struct{ urls []string }

func (s *staticGateways) GetGateways(context.Context) ([]string, error) { return s.urls, nil }

// Start marks the transport connected.
func (ft *FakeTransport) Start(context.Context) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.stopped {
		return errors.ErrRuntimeStopped
	}
	ft.started = true
	return nil
}

// PrepareToStop needs no behavior in-memory.
func (ft *FakeTransport) PrepareToStop() {}

// Stop closes the transport, waking any blocked WaitMessage; the inbound
// channels themselves stay open.
func (ft *FakeTransport) Stop() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.stopped {
		return nil
	}
	ft.stopped = true
	ft.started = false
	close(ft.closed)
	return nil
}

// SendMessage records the outbound message.
func (ft *FakeTransport) SendMessage(msg *message.Message) error {
	if ft.SendHook != nil {
		if err := ft.SendHook(msg); err != nil {
			return err
		}
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.stopped {
		return errors.ErrRuntimeStopped
	}
	ft.sent = append(ft.sent, msg)
	return nil
}

// Sent returns a snapshot of recorded outbound messages.
func (ft *FakeTransport) Sent() []*message.Message {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]*message.Message(nil), ft.sent...)
}

// Deliver injects an inbound message as if it arrived from a gateway.
func (ft *FakeTransport) Deliver(msg *message.Message) {
	ft.mu.Lock()
	ch, ok := ft.inbound[msg.Category]
	stopped := ft.stopped
	ft.mu.Unlock()
	if !ok || stopped {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// WaitMessage blocks until a message of the category arrives, the context
// is cancelled, or the transport stops.
func (ft *FakeTransport) WaitMessage(ctx context.Context, category message.Category) *message.Message {
	ft.mu.Lock()
	ch, ok := ft.inbound[category]
	ft.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case <-ft.closed:
		return nil
	case msg := <-ch:
		return msg
	}
}

// RegisterObserver records the observer id.
func (ft *FakeTransport) RegisterObserver(_ context.Context, id grain.ID) error {
	if ft.RegisterErr != nil {
		return ft.RegisterErr
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.registered = append(ft.registered, id)
	return nil
}

// UnregisterObserver records the observer id.
func (ft *FakeTransport) UnregisterObserver(_ context.Context, id grain.ID) error {
	if ft.UnregisterErr != nil {
		return ft.UnregisterErr
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.unregistered = append(ft.unregistered, id)
	return nil
}

// Registered returns observer ids announced so far.
func (ft *FakeTransport) Registered() []grain.ID {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]grain.ID(nil), ft.registered...)
}

// Unregistered returns observer ids withdrawn so far.
func (ft *FakeTransport) Unregistered() []grain.ID {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]grain.ID(nil), ft.unregistered...)
}

// GetTypeCodeMap returns the configured map.
func (ft *FakeTransport) GetTypeCodeMap(context.Context) (grain.InterfaceMap, error) {
	return ft.TypeMap, nil
}

// GetImplicitStreamSubscriberTable returns the configured table.
func (ft *FakeTransport) GetImplicitStreamSubscriberTable(context.Context) (transport.StreamSubscriberTable, error) {
	return ft.Streams, nil
}

// MyAddress returns the configured address once started.
func (ft *FakeTransport) MyAddress() (grain.SiloAddress, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if !ft.started {
		return grain.SiloAddress{}, errors.ErrNotStarted
	}
	return ft.Address, nil
}

// Disconnect marks the transport unstarted.
func (ft *FakeTransport) Disconnect() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.started = false
	return nil
}

// Reconnect marks the transport started again.
func (ft *FakeTransport) Reconnect(context.Context) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.stopped {
		return errors.ErrRuntimeStopped
	}
	ft.started = true
	return nil
}

// GatewayManager returns a manager over a single in-process gateway.
func (ft *FakeTransport) GatewayManager() *transport.GatewayManager {
	return ft.gateways
}
