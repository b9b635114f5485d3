package transport

import (
	"context"

	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

// StreamSubscriberTable maps stream namespaces to the grain interfaces
// implicitly subscribed to them. Fetched from the gateway on demand.
type StreamSubscriberTable struct {
	Subscribers map[string][]int32 `json:"subscribers"`
}

// Transport is the proxied gateway channel the client runtime consumes.
//
// Message ownership transfers on SendMessage: the caller must not touch a
// message after handing it over. WaitMessage returns nil when the context
// is cancelled or the transport stops; the pump treats nil as its shutdown
// signal.
type Transport interface {
	// Start connects to a gateway and begins receiving.
	Start(ctx context.Context) error

	// PrepareToStop stops accepting outbound messages ahead of Stop.
	PrepareToStop()

	// Stop tears the channel down. Idempotent.
	Stop() error

	// SendMessage hands a message to the gateway. Ownership transfers.
	SendMessage(msg *message.Message) error

	// WaitMessage blocks for the next message of the category. Returns nil
	// on cancellation or stop.
	WaitMessage(ctx context.Context, category message.Category) *message.Message

	// RegisterObserver announces a client-addressable grain id so gateways
	// route callbacks for it to this client.
	RegisterObserver(ctx context.Context, id grain.ID) error

	// UnregisterObserver withdraws an observer registration.
	UnregisterObserver(ctx context.Context, id grain.ID) error

	// GetTypeCodeMap fetches the interface/type-code map from the gateway.
	GetTypeCodeMap(ctx context.Context) (grain.InterfaceMap, error)

	// GetImplicitStreamSubscriberTable fetches the stream subscriber table.
	GetImplicitStreamSubscriberTable(ctx context.Context) (StreamSubscriberTable, error)

	// MyAddress is the locally bound endpoint. Undefined before Start
	// completes; implementations return an error then.
	MyAddress() (grain.SiloAddress, error)

	// Disconnect severs the gateway connection without tearing down state.
	// Test hook.
	Disconnect() error

	// Reconnect re-establishes a severed connection. Test hook.
	Reconnect(ctx context.Context) error

	// GatewayManager exposes the gateway list used by this transport.
	GatewayManager() *GatewayManager
}
