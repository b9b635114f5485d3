package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/testutil"
)

func testClientConfig() *config.ClientConfig {
	cfg := &config.ClientConfig{
		DeploymentID:        "test-deploy",
		GatewayURLs:         []string{"inproc://test"},
		ResponseTimeout:     250 * time.Millisecond,
		DropExpiredMessages: true,
	}
	cfg.ApplyDefaults()
	return cfg
}

// newStartedRuntime builds a runtime over a fake transport, starts it, and
// registers cleanup. Secondary mode keeps the process's default logger
// untouched across tests.
func newStartedRuntime(t *testing.T, mutate func(*config.ClientConfig), opts ...Option) (*Runtime, *testutil.FakeTransport) {
	t.Helper()

	cfg := testClientConfig()
	if mutate != nil {
		mutate(cfg)
	}

	ft := testutil.NewFakeTransport()
	opts = append([]Option{WithTransport(ft), AsSecondary()}, opts...)
	rt, err := NewRuntime(cfg, opts...)
	require.NoError(t, err)

	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() {
		rt.Reset()
		rt.Dispose()
	})
	return rt, ft
}

// testObserver is a local callback object target.
type testObserver struct {
	hits atomic.Int32
}

// recordingInvoker records invocations and produces configurable results.
type recordingInvoker struct {
	mu    sync.Mutex
	calls []string

	delay   time.Duration
	result  any
	err     error
	oneWay  bool
	active  atomic.Int32
	overlap atomic.Bool
}

func (i *recordingInvoker) Invoke(_ context.Context, target any, req grain.InvokeRequest) (<-chan grain.InvokeResult, error) {
	i.mu.Lock()
	i.calls = append(i.calls, req.DebugName)
	i.mu.Unlock()

	if obs, ok := target.(*testObserver); ok {
		obs.hits.Add(1)
	}
	if i.err != nil && i.delay == 0 {
		return nil, i.err
	}
	if i.oneWay {
		return nil, nil
	}

	ch := make(chan grain.InvokeResult, 1)
	go func() {
		if i.active.Add(1) > 1 {
			i.overlap.Store(true)
		}
		if i.delay > 0 {
			time.Sleep(i.delay)
		}
		i.active.Add(-1)
		if i.err != nil {
			ch <- grain.InvokeResult{Err: i.err}
			return
		}
		result := i.result
		if result == nil {
			result = "done:" + req.DebugName
		}
		ch <- grain.InvokeResult{Value: result}
	}()
	return ch, nil
}

func (i *recordingInvoker) recorded() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.calls...)
}
