package message

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/pkg/timestamp"
)

// MaxClockSkew absorbs clock drift between the client and silos when
// stamping expirations. Applied only to expirable, non-system-target
// messages.
const MaxClockSkew = 30 * time.Second

// CorrelationID matches responses to waiting callers. Unique within the
// process for the lifetime of any outstanding request.
type CorrelationID int64

// correlationCounter backs correlation id allocation for the process.
var correlationCounter atomic.Int64

// NewCorrelationID allocates the next correlation id.
func NewCorrelationID() CorrelationID {
	return CorrelationID(correlationCounter.Add(1))
}

// String returns the decimal form.
func (c CorrelationID) String() string {
	return fmt.Sprintf("%d", c)
}

// Direction classifies a message's role in the request/response protocol.
type Direction int

const (
	// DirectionRequest expects a response.
	DirectionRequest Direction = iota
	// DirectionResponse completes a prior request.
	DirectionResponse
	// DirectionOneWay expects no response.
	DirectionOneWay
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "request"
	case DirectionResponse:
		return "response"
	case DirectionOneWay:
		return "one-way"
	default:
		return "unknown"
	}
}

// Category partitions transport queues. The client pump consumes only
// application-category messages.
type Category int

const (
	// CategoryApplication carries grain requests, responses, and one-ways.
	CategoryApplication Category = iota
	// CategorySystem carries runtime control traffic.
	CategorySystem
	// CategoryPing carries liveness probes.
	CategoryPing
)

// String returns the string representation of Category
func (c Category) String() string {
	switch c {
	case CategoryApplication:
		return "application"
	case CategorySystem:
		return "system"
	case CategoryPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Header keys carried in Message.Headers.
const (
	// HeaderTargetHistory accumulates prior target bindings across resends.
	HeaderTargetHistory = "target-history"
)

// Message is one unit of traffic on the proxied gateway channel.
type Message struct {
	ID        CorrelationID `json:"id"`
	Category  Category      `json:"category"`
	Direction Direction     `json:"direction"`

	SendingGrain      grain.ID           `json:"sending_grain"`
	SendingActivation grain.ActivationID `json:"sending_activation"`
	SendingSilo       grain.SiloAddress  `json:"sending_silo,omitzero"`

	TargetGrain      grain.ID            `json:"target_grain"`
	TargetSilo       *grain.SiloAddress  `json:"target_silo,omitempty"`
	TargetActivation *grain.ActivationID `json:"target_activation,omitempty"`

	GenericGrainType string `json:"generic_grain_type,omitempty"`
	DebugContext     string `json:"debug_context,omitempty"`

	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Expiration is Unix milliseconds; 0 means no expiration.
	Expiration  int64 `json:"expiration,omitempty"`
	ResendCount int   `json:"resend_count,omitempty"`

	// Response is set only for DirectionResponse messages.
	Response *Response `json:"response,omitempty"`
}

// NewRequest builds an application request message.
func NewRequest(target grain.Reference, body any) *Message {
	return &Message{
		ID:          NewCorrelationID(),
		Category:    CategoryApplication,
		Direction:   DirectionRequest,
		TargetGrain: target.GrainID,
		Body:        body,
	}
}

// NewOneWay builds an application one-way message.
func NewOneWay(target grain.Reference, body any) *Message {
	m := NewRequest(target, body)
	m.Direction = DirectionOneWay
	return m
}

// CreateResponse builds the response message for a request, addressed back
// to the sender.
func (m *Message) CreateResponse(resp *Response) *Message {
	return &Message{
		ID:          m.ID,
		Category:    m.Category,
		Direction:   DirectionResponse,
		TargetGrain: m.SendingGrain,
		TargetActivation: func() *grain.ActivationID {
			if m.SendingActivation.IsZero() {
				return nil
			}
			a := m.SendingActivation
			return &a
		}(),
		TargetSilo: func() *grain.SiloAddress {
			if m.SendingSilo.IsZero() {
				return nil
			}
			s := m.SendingSilo
			return &s
		}(),
		Response: resp,
	}
}

// SetExpiration stamps the expiration ttl from now.
func (m *Message) SetExpiration(ttl time.Duration) {
	m.Expiration = timestamp.Add(timestamp.Now(), ttl)
}

// IsExpired reports whether the message is past its expiration stamp.
func (m *Message) IsExpired() bool {
	if m.Expiration == 0 {
		return false
	}
	return timestamp.Now() > m.Expiration
}

// IsExpirable reports whether this message should carry an expiration
// stamp under the given configuration. System targets are exempt: they are
// bound to a silo and never rebound, so expiry-and-rebind does not apply.
func (m *Message) IsExpirable(cfg *config.ClientConfig) bool {
	if !cfg.DropExpiredMessages {
		return false
	}
	return !m.TargetGrain.IsSystemTarget()
}

// MayResend reports whether the resend budget allows another attempt.
func (m *Message) MayResend(cfg *config.ClientConfig) bool {
	return m.ResendCount < cfg.MaxResendCount
}

// AddToTargetHistory appends the current target binding to the
// target-history header so gateways can see where the message has been.
func (m *Message) AddToTargetHistory() {
	var parts []string
	if prior, ok := m.Headers[HeaderTargetHistory]; ok && prior != "" {
		parts = append(parts, prior)
	}
	entry := m.TargetGrain.String()
	if m.TargetActivation != nil {
		entry += "/" + m.TargetActivation.String()
	}
	if m.TargetSilo != nil {
		entry += "@" + m.TargetSilo.String()
	}
	parts = append(parts, entry)

	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[HeaderTargetHistory] = strings.Join(parts, ";")
}

// ClearTargetBinding strips the activation and silo bindings so the
// gateway rebinds the target on the next attempt. Never called for system
// targets.
func (m *Message) ClearTargetBinding() {
	m.TargetActivation = nil
	m.TargetSilo = nil
}

// String returns a compact form for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s %s id=%s target=%s resend=%d",
		m.Category, m.Direction, m.ID, m.TargetGrain, m.ResendCount)
}
