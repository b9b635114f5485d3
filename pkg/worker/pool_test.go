package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWork struct {
	id   int
	fail bool
}

func TestNewPoolDefaults(t *testing.T) {
	processor := func(context.Context, testWork) error { return nil }

	pool := NewPool(5, 100, processor)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 100, pool.queueSize)

	pool = NewPool(0, 0, processor)
	assert.Equal(t, 8, pool.workers)
	assert.Equal(t, 1024, pool.queueSize)
}

func TestNewPoolNilProcessor(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[testWork](5, 100, nil)
	})
}

func TestPoolLifecycle(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(2, 10, func(context.Context, testWork) error {
		processed.Add(1)
		return nil
	})

	// Submit before start fails
	require.ErrorIs(t, pool.Submit(testWork{}), ErrPoolNotStarted)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	require.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)

	for i := 0; i < 10; i++ {
		_ = pool.Submit(testWork{id: i})
	}

	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(10), processed.Load())

	// Stop is idempotent
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolQueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ testWork) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// First submit goes to the worker, second fills the queue;
	// keep submitting until the queue rejects.
	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(testWork{id: i}); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull)
	assert.Positive(t, pool.Stats().Dropped)

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolTracksFailures(t *testing.T) {
	pool := NewPool(2, 10, func(_ context.Context, w testWork) error {
		if w.fail {
			return errors.New("processing failed")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{id: 1, fail: true}))
	require.NoError(t, pool.Submit(testWork{id: 2}))
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPoolConcurrentSubmitters(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(4, 1000, func(context.Context, testWork) error {
		processed.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	const submitters = 8
	const perSubmitter = 50
	for s := 0; s < submitters; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSubmitter; i++ {
				_ = pool.Submit(testWork{id: i})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, pool.Stop(2*time.Second))
	assert.Equal(t, int64(submitters*perSubmitter), processed.Load())
}

func TestPoolContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	pool := NewPool(1, 10, func(ctx context.Context, _ testWork) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(testWork{}))

	<-started
	cancel()
	// The worker exits on cancellation, so Stop does not time out
	require.NoError(t, pool.Stop(2*time.Second))
}
