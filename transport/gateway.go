package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/pkg/retry"
)

// GatewayListProvider resolves the set of gateway endpoints a client may
// connect through.
type GatewayListProvider interface {
	GetGateways(ctx context.Context) ([]string, error)
}

// StaticGatewayListProvider serves the gateway list fixed in configuration.
type StaticGatewayListProvider struct {
	urls []string
}

// NewStaticGatewayListProvider builds a provider from the configured URLs.
func NewStaticGatewayListProvider(cfg *config.ClientConfig) *StaticGatewayListProvider {
	return &StaticGatewayListProvider{urls: append([]string(nil), cfg.GatewayURLs...)}
}

// GetGateways returns the configured gateway URLs.
func (p *StaticGatewayListProvider) GetGateways(_ context.Context) ([]string, error) {
	if len(p.urls) == 0 {
		return nil, errors.ErrNoGateways
	}
	return append([]string(nil), p.urls...), nil
}

// GatewayManager tracks the resolved gateway list and hands out endpoints
// round-robin.
type GatewayManager struct {
	provider GatewayListProvider

	mu       sync.RWMutex
	gateways []string
	cursor   atomic.Uint64
}

// NewGatewayManager creates a manager over the given provider.
func NewGatewayManager(provider GatewayListProvider) *GatewayManager {
	return &GatewayManager{provider: provider}
}

// ListProvider returns the underlying provider.
func (m *GatewayManager) ListProvider() GatewayListProvider {
	return m.provider
}

// Refresh resolves the gateway list, retrying failures not marked
// NonRetryable with the Quick backoff: up to 10 attempts, or until the
// context expires.
func (m *GatewayManager) Refresh(ctx context.Context) error {
	gateways, err := retry.DoWithResult(ctx, retry.Quick(), func() ([]string, error) {
		return m.provider.GetGateways(ctx)
	})
	if err != nil {
		return errors.WrapTransient(err, "GatewayManager", "Refresh", "gateway list resolution")
	}
	if len(gateways) == 0 {
		return errors.WrapTransient(errors.ErrNoGateways, "GatewayManager", "Refresh", "gateway list resolution")
	}

	m.mu.Lock()
	m.gateways = gateways
	m.mu.Unlock()
	return nil
}

// Gateways returns the last resolved list.
func (m *GatewayManager) Gateways() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.gateways...)
}

// NextGateway returns the next endpoint round-robin. Empty string if no
// list has been resolved.
func (m *GatewayManager) NextGateway() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.gateways) == 0 {
		return ""
	}
	idx := m.cursor.Add(1) - 1
	return m.gateways[idx%uint64(len(m.gateways))]
}
