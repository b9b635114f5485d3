package client

import (
	"sync"

	"github.com/google/uuid"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
)

// Identity is the client's own addressing state. GUID and generation are
// fixed at construction; the address is materialized from the transport's
// bound endpoint when Start completes, and reading it earlier fails.
type Identity struct {
	GUID       uuid.UUID
	Generation int32
	GrainID    grain.ID
	Activation grain.ActivationID

	mu      sync.RWMutex
	address grain.SiloAddress
	bound   bool
}

// newIdentity allocates a fresh client identity. Every call yields a new
// GUID and a new, strictly negative generation.
func newIdentity() *Identity {
	return &Identity{
		GUID:       uuid.New(),
		Generation: grain.NextClientGeneration(),
		GrainID:    grain.NewClientID(),
		Activation: grain.NewActivationID(),
	}
}

// bind materializes the self address once the transport is up.
func (id *Identity) bind(addr grain.SiloAddress) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.address = addr
	id.bound = true
}

// unbind clears the address during Reset.
func (id *Identity) unbind() {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.address = grain.SiloAddress{}
	id.bound = false
}

// Address returns the self address. Errors before Start completes.
func (id *Identity) Address() (grain.SiloAddress, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if !id.bound {
		return grain.SiloAddress{}, errors.WrapInvalid(errors.ErrNotStarted,
			"Identity", "Address", "address read before transport start")
	}
	return id.address, nil
}
