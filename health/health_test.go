package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorEvaluatesChecks(t *testing.T) {
	m := NewMonitor(10*time.Millisecond, nil)
	m.RegisterCheck("always-up", func(context.Context) error { return nil })

	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		s, ok := m.Status("always-up")
		return ok && s.Healthy
	}, time.Second, 5*time.Millisecond)
	assert.True(t, m.Healthy())
}

func TestMonitorDetectsTransitions(t *testing.T) {
	var failing atomic.Bool
	var transitions atomic.Int32

	m := NewMonitor(10*time.Millisecond, nil,
		WithChangeCallback(func(_ string, _ bool) { transitions.Add(1) }),
	)
	m.RegisterCheck("flappy", func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})

	m.Start(context.Background())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		_, ok := m.Status("flappy")
		return ok
	}, time.Second, 5*time.Millisecond)

	failing.Store(true)
	assert.Eventually(t, func() bool {
		return !m.Healthy()
	}, time.Second, 5*time.Millisecond)

	failing.Store(false)
	assert.Eventually(t, func() bool {
		return m.Healthy()
	}, time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, transitions.Load(), int32(2))

	s, ok := m.Status("flappy")
	require.True(t, ok)
	assert.True(t, s.Healthy)
}

func TestMonitorHealthyWithNoChecks(t *testing.T) {
	m := NewMonitor(time.Second, nil)
	assert.True(t, m.Healthy())
}

func TestMonitorStopIdempotent(t *testing.T) {
	m := NewMonitor(time.Hour, nil)
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
