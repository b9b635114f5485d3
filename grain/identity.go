package grain

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind classifies a grain id by how it is addressed.
type Kind int

const (
	// KindGrain is a regular, placement-managed grain.
	KindGrain Kind = iota
	// KindClient is a client-addressable grain: callbacks to it are routed
	// through the gateway's proxied channel, never placed on a silo.
	KindClient
	// KindSystemTarget is a built-in grain bound to a specific silo.
	KindSystemTarget
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindGrain:
		return "grain"
	case KindClient:
		return "client"
	case KindSystemTarget:
		return "system-target"
	default:
		return "unknown"
	}
}

// ID identifies a grain. The zero value is not a valid id.
type ID struct {
	Kind Kind      `json:"kind"`
	Key  uuid.UUID `json:"key"`
}

// NewID allocates a fresh id of the given kind.
func NewID(kind Kind) ID {
	return ID{Kind: kind, Key: uuid.New()}
}

// NewClientID allocates a fresh client-addressable grain id.
func NewClientID() ID {
	return NewID(KindClient)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id.Key == uuid.Nil
}

// IsClient reports whether the id addresses a client.
func (id ID) IsClient() bool {
	return id.Kind == KindClient
}

// IsSystemTarget reports whether the id addresses a system target.
func (id ID) IsSystemTarget() bool {
	return id.Kind == KindSystemTarget
}

// String returns "kind/key" for logs and map keys.
func (id ID) String() string {
	return fmt.Sprintf("%s/%s", id.Kind, id.Key)
}

// ActivationID identifies a running activation of a grain.
type ActivationID struct {
	Key uuid.UUID `json:"key"`
}

// NewActivationID allocates a fresh activation id.
func NewActivationID() ActivationID {
	return ActivationID{Key: uuid.New()}
}

// systemActivationNamespace seeds deterministic system activation ids.
var systemActivationNamespace = uuid.MustParse("8af4fa26-1d65-4b60-a9ba-f38e4a1a9b6e")

// SystemActivationID derives the deterministic activation id for a system
// target bound to a silo. The same (id, silo) pair always yields the same
// activation, so resends address the identical activation.
func SystemActivationID(id ID, silo SiloAddress) ActivationID {
	data := []byte(id.String() + "@" + silo.String())
	return ActivationID{Key: uuid.NewSHA1(systemActivationNamespace, data)}
}

// IsZero reports whether the activation id is unset.
func (a ActivationID) IsZero() bool {
	return a.Key == uuid.Nil
}

// String returns the key in canonical form.
func (a ActivationID) String() string {
	return a.Key.String()
}

// SiloAddress locates a silo or client endpoint. Generation disambiguates
// successive processes at the same endpoint; clients use negative
// generations.
type SiloAddress struct {
	Endpoint   string `json:"endpoint"`
	Generation int32  `json:"generation"`
}

// IsZero reports whether the address is unset.
func (s SiloAddress) IsZero() bool {
	return s.Endpoint == "" && s.Generation == 0
}

// IsClient reports whether the address belongs to a client process.
func (s SiloAddress) IsClient() bool {
	return s.Generation < 0
}

// String returns "endpoint@generation".
func (s SiloAddress) String() string {
	return fmt.Sprintf("%s@%d", s.Endpoint, s.Generation)
}

// generationCounter backs client generation allocation for the process.
var generationCounter atomic.Int32

// NextClientGeneration allocates the next client generation. Every value is
// negative and unique within the process.
func NextClientGeneration() int32 {
	return -generationCounter.Add(1)
}
