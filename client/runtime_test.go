package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
	"github.com/muntasirraihan/orleans/testutil"
)

func TestNewRuntimeRejectsInvalidConfig(t *testing.T) {
	_, err := NewRuntime(nil)
	require.Error(t, err)

	_, err = NewRuntime(&config.ClientConfig{}, AsSecondary())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestIdentityInvariants(t *testing.T) {
	// R6: negative generation, unique GUIDs across instances
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 5; i++ {
		rt, err := NewRuntime(testClientConfig(), WithTransport(testutil.NewFakeTransport()), AsSecondary())
		require.NoError(t, err)

		id := rt.Identity()
		assert.Negative(t, id.Generation)
		assert.True(t, id.GrainID.IsClient())
		assert.False(t, seen[id.GUID], "client GUID reused")
		seen[id.GUID] = true
	}
}

func TestAddressUndefinedBeforeStart(t *testing.T) {
	rt, err := NewRuntime(testClientConfig(), WithTransport(testutil.NewFakeTransport()), AsSecondary())
	require.NoError(t, err)

	_, err = rt.Identity().Address()
	require.Error(t, err)
}

func TestStartBindsSelfAddress(t *testing.T) {
	rt, ft := newStartedRuntime(t, nil)

	addr, err := rt.Identity().Address()
	require.NoError(t, err)
	assert.Equal(t, ft.Address.Endpoint, addr.Endpoint)
	assert.Negative(t, addr.Generation)
}

func TestSingletonInvariant(t *testing.T) {
	// R8: two concurrent Starts, one succeeds and one fails AlreadyRunning
	rtA, err := NewRuntime(testClientConfig(), WithTransport(testutil.NewFakeTransport()), AsSecondary())
	require.NoError(t, err)
	rtB, err := NewRuntime(testClientConfig(), WithTransport(testutil.NewFakeTransport()), AsSecondary())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, rt := range []*Runtime{rtA, rtB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = rt.Start(context.Background())
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, errors.ErrAlreadyRunning)
		}
	}
	assert.Equal(t, 1, succeeded)

	rtA.Reset()
	rtB.Reset()
}

func TestSecondStartOnSameInstanceFails(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)
	err := rt.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyRunning)
}

func TestResetClearsSlotAndStopsDispatch(t *testing.T) {
	rt, ft := newStartedRuntime(t, nil)
	assert.Same(t, rt, Current())

	obs := &testObserver{}
	inv := &recordingInvoker{}
	ref, err := CreateObjectReference(context.Background(), rt, obs, inv)
	require.NoError(t, err)

	rt.Reset()
	assert.Nil(t, Current())

	// R5: no new messages are dispatched after Reset
	req := message.NewRequest(grain.NewReference(ref.GrainID), &grain.InvokeRequest{DebugName: "late"})
	ft.Deliver(req)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, inv.recorded())

	// No new outbound callbacks either
	sink := make(chan Result, 1)
	_, err = rt.SendRequest(grain.NewReference(grain.NewID(grain.KindGrain)),
		&grain.InvokeRequest{}, sink, SendOptions{})
	require.Error(t, err)

	// Reset is idempotent
	rt.Reset()
}

func TestResetToleratesFailingSteps(t *testing.T) {
	ft := testutil.NewFakeTransport()
	rt, err := NewRuntime(testClientConfig(), WithTransport(ft), AsSecondary())
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))

	// Tear the transport down out from under the runtime; Reset must
	// still run every remaining step and clear the slot.
	require.NoError(t, ft.Stop())
	rt.Reset()
	assert.Nil(t, Current())
}

func TestDisposeIsIdempotent(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)
	rt.Dispose()
	rt.Dispose()

	err := rt.Start(context.Background())
	require.Error(t, err, "a disposed runtime cannot restart")
}

func TestStartFailureReleasesSlot(t *testing.T) {
	ft := testutil.NewFakeTransport()
	require.NoError(t, ft.Stop()) // transport start will fail

	rt, err := NewRuntime(testClientConfig(), WithTransport(ft), AsSecondary())
	require.NoError(t, err)

	require.Error(t, rt.Start(context.Background()))
	assert.Nil(t, Current(), "failed Start must not hold the slot")
}

func TestTypeCodeMapFetchedAtStart(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)

	// The fake returns an empty-but-present map
	assert.NotNil(t, rt.TypeCodeMap().Interfaces)
}

func TestStreamSubscriberTable(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)
	table, err := rt.StreamSubscriberTable(context.Background())
	require.NoError(t, err)
	assert.Nil(t, table.Subscribers)
}

func TestInvalidContextOperations(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)

	_, err := rt.GetSiloStatus(grain.SiloAddress{})
	assert.ErrorIs(t, err, errors.ErrInvalidContext)
	assert.ErrorIs(t, rt.DeactivateOnIdle(grain.NewID(grain.KindGrain)), errors.ErrInvalidContext)
	_, err = rt.CaptureRuntimeEnvironment()
	assert.ErrorIs(t, err, errors.ErrInvalidContext)
	_, err = rt.GetInvoker(1)
	assert.ErrorIs(t, err, errors.ErrInvalidContext)
	assert.ErrorIs(t, rt.ProcessOutgoingMessage(nil), errors.ErrInvalidContext)
	assert.ErrorIs(t, rt.ProcessIncomingMessage(nil), errors.ErrInvalidContext)
	_, err = rt.ReminderService()
	assert.ErrorIs(t, err, errors.ErrInvalidContext)
	_, err = rt.StorageProvider("Default")
	assert.ErrorIs(t, err, errors.ErrInvalidContext)
}

func TestHealthy(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)
	assert.True(t, rt.Healthy())
	rt.Reset()
	assert.False(t, rt.Healthy())
}

func TestStatisticsProviderNameResolved(t *testing.T) {
	cfg := testClientConfig()
	cfg.ProviderConfigurations = []config.ProviderConfig{{Name: "kv-stats", Type: "statistics"}}

	rt, err := NewRuntime(cfg, WithTransport(testutil.NewFakeTransport()), AsSecondary())
	require.NoError(t, err)
	assert.Equal(t, "kv-stats", rt.Config().StatisticsProviderName)
}
