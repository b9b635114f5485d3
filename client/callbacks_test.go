package client

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

func newTestCallbacks(t *testing.T, timeout time.Duration) *callbackRegistry {
	t.Helper()
	return newCallbackRegistry(timeout, slog.Default(), nil)
}

func newTestRequest() *message.Message {
	return message.NewRequest(grain.NewReference(grain.NewID(grain.KindGrain)), "body")
}

func TestCompleteDeliversValue(t *testing.T) {
	r := newTestCallbacks(t, time.Minute)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	_, err := r.Register(msg, sink, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, r.Count())

	resp := msg.CreateResponse(message.NewValueResponse("ok"))
	r.Complete(resp)

	select {
	case res := <-sink:
		require.NoError(t, res.Err)
		assert.Equal(t, "ok", res.Value)
	default:
		t.Fatal("sink did not observe the value")
	}
	assert.Equal(t, 0, r.Count(), "registry size decreases after completion")
}

func TestRegisterDuplicateCorrelationFails(t *testing.T) {
	r := newTestCallbacks(t, time.Minute)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	_, err := r.Register(msg, sink, nil, nil)
	require.NoError(t, err)
	_, err = r.Register(msg, sink, nil, nil)
	require.Error(t, err)
}

func TestCompleteUnknownCorrelationIsDropped(t *testing.T) {
	r := newTestCallbacks(t, time.Minute)

	// R2: completing an unknown id must not mutate any state
	resp := newTestRequest().CreateResponse(message.NewValueResponse("ok"))
	r.Complete(resp)
	assert.Equal(t, 0, r.Count())
}

func TestTimeoutWithoutRetry(t *testing.T) {
	r := newTestCallbacks(t, 50*time.Millisecond)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	_, err := r.Register(msg, sink, func(*message.Message) bool { return false }, nil)
	require.NoError(t, err)

	select {
	case res := <-sink:
		require.Error(t, res.Err)
		assert.True(t, errors.IsTransient(res.Err))
		assert.ErrorIs(t, res.Err, errors.ErrResponseTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not observe the timeout")
	}
	assert.Equal(t, 0, r.Count(), "entry removed after timeout")
}

func TestTimeoutWithOneRetry(t *testing.T) {
	r := newTestCallbacks(t, 40*time.Millisecond)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	var retries atomic.Int32
	retry := func(m *message.Message) bool {
		return retries.Add(1) == 1 // resend once, then give up
	}

	_, err := r.Register(msg, sink, retry, nil)
	require.NoError(t, err)

	select {
	case res := <-sink:
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, errors.ErrResponseTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not observe the timeout")
	}
	assert.Equal(t, int32(2), retries.Load(), "hook ran once for the resend and once to give up")
}

func TestResponseAfterRetryStillDelivers(t *testing.T) {
	r := newTestCallbacks(t, 30*time.Millisecond)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	_, err := r.Register(msg, sink, func(*message.Message) bool { return true }, nil)
	require.NoError(t, err)

	// Let at least one timeout+resend cycle pass, then answer.
	time.Sleep(80 * time.Millisecond)
	r.Complete(msg.CreateResponse(message.NewValueResponse("late")))

	select {
	case res := <-sink:
		require.NoError(t, res.Err)
		assert.Equal(t, "late", res.Value)
	case <-time.After(time.Second):
		t.Fatal("sink did not observe the late value")
	}
}

func TestDuplicateRejectionIsSilentlyDropped(t *testing.T) {
	r := newTestCallbacks(t, time.Minute)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	_, err := r.Register(msg, sink, nil, nil)
	require.NoError(t, err)

	// R4: the duplicate rejection never reaches the sink and leaves the
	// callback in place for the real response.
	r.Complete(msg.CreateResponse(message.NewRejectionResponse(message.RejectionDuplicateRequest)))
	select {
	case <-sink:
		t.Fatal("duplicate rejection reached the completion sink")
	default:
	}
	assert.Equal(t, 1, r.Count())

	r.Complete(msg.CreateResponse(message.NewValueResponse("real")))
	res := <-sink
	assert.Equal(t, "real", res.Value)
}

func TestExceptionResponseSurfacesAsError(t *testing.T) {
	r := newTestCallbacks(t, time.Minute)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	_, err := r.Register(msg, sink, nil, nil)
	require.NoError(t, err)

	r.Complete(msg.CreateResponse(message.NewExceptionResponse("InvalidOperationException", "kaboom")))

	res := <-sink
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "kaboom")
}

func TestAtMostOneDelivery(t *testing.T) {
	// R1: even racing a response against the timeout, the sink observes
	// exactly one result.
	for i := 0; i < 20; i++ {
		r := newTestCallbacks(t, time.Millisecond)
		msg := newTestRequest()
		sink := make(chan Result, 2)

		_, err := r.Register(msg, sink, nil, nil)
		require.NoError(t, err)

		go r.Complete(msg.CreateResponse(message.NewValueResponse("ok")))
		time.Sleep(5 * time.Millisecond)

		assert.LessOrEqual(t, len(sink), 1, "sink observed more than one result")
	}
}

func TestUnregisterRunsHook(t *testing.T) {
	r := newTestCallbacks(t, time.Minute)
	msg := newTestRequest()
	sink := make(chan Result, 1)

	var unregistered atomic.Bool
	_, err := r.Register(msg, sink, nil, func() { unregistered.Store(true) })
	require.NoError(t, err)

	r.Unregister(msg.ID)
	assert.True(t, unregistered.Load())
	assert.Equal(t, 0, r.Count())

	// Unregistering a missing id is a no-op
	r.Unregister(msg.ID)
}
