package client

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

func TestLocalObjectRegistryInsertLookupRemove(t *testing.T) {
	r := newLocalObjectRegistry()
	id := grain.NewClientID()
	data := &localObjectData{grainID: id}

	_, ok := r.Lookup(id)
	assert.False(t, ok)

	r.Insert(data)
	got, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Same(t, data, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove(id))
	assert.False(t, r.Remove(id))
	assert.Equal(t, 0, r.Len())
}

func TestEnqueueSchedulesOnlyWhenIdle(t *testing.T) {
	data := &localObjectData{grainID: grain.NewClientID()}

	m1 := message.NewRequest(grain.NewReference(data.grainID), nil)
	m2 := message.NewRequest(grain.NewReference(data.grainID), nil)

	assert.True(t, data.enqueue(m1), "first enqueue on idle queue schedules a drain")
	assert.False(t, data.enqueue(m2), "running drain picks up subsequent messages")

	got, ok := data.dequeue()
	require.True(t, ok)
	assert.Same(t, m1, got)
	got, ok = data.dequeue()
	require.True(t, ok)
	assert.Same(t, m2, got)

	_, ok = data.dequeue()
	assert.False(t, ok)

	// dequeue on empty clears running, so the next enqueue schedules again
	assert.True(t, data.enqueue(m1))
}

func TestCreateObjectReference(t *testing.T) {
	rt, ft := newStartedRuntime(t, nil)

	obs := &testObserver{}
	inv := &recordingInvoker{}
	ref, err := CreateObjectReference(context.Background(), rt, obs, inv)
	require.NoError(t, err)

	assert.True(t, ref.GrainID.IsClient())
	_, ok := rt.localObjects.Lookup(ref.GrainID)
	assert.True(t, ok)
	require.Len(t, ft.Registered(), 1)
	assert.Equal(t, ref.GrainID, ft.Registered()[0])
}

func TestCreateObjectReferenceRejectsRemoteReference(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)

	ref := grain.NewReference(grain.NewID(grain.KindGrain))
	_, err := CreateObjectReference(context.Background(), rt, &ref, &recordingInvoker{})
	require.Error(t, err)
}

func TestCreateObjectReferenceRegistrationFailure(t *testing.T) {
	rt, ft := newStartedRuntime(t, nil)
	ft.RegisterErr = errors.ErrConnectionLost

	_, err := CreateObjectReference(context.Background(), rt, &testObserver{}, &recordingInvoker{})
	require.Error(t, err)
	assert.Equal(t, 0, rt.localObjects.Len())
}

func TestDeleteObjectReference(t *testing.T) {
	rt, ft := newStartedRuntime(t, nil)

	obs := &testObserver{}
	ref, err := CreateObjectReference(context.Background(), rt, obs, &recordingInvoker{})
	require.NoError(t, err)

	require.NoError(t, rt.DeleteObjectReference(context.Background(), ref))
	assert.Equal(t, 0, rt.localObjects.Len())
	require.Len(t, ft.Unregistered(), 1)
	assert.Equal(t, ref.GrainID, ft.Unregistered()[0])
}

func TestDeleteObjectReferenceNotLocal(t *testing.T) {
	rt, _ := newStartedRuntime(t, nil)

	err := rt.DeleteObjectReference(context.Background(), grain.NewReference(grain.NewClientID()))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotLocal)
}

// registerCollectable installs an observer whose only strong reference
// dies with this function's frame.
func registerCollectable(t *testing.T, rt *Runtime, inv *recordingInvoker) grain.Reference {
	t.Helper()
	obs := &testObserver{}
	ref, err := CreateObjectReference(context.Background(), rt, obs, inv)
	require.NoError(t, err)
	return ref
}

func TestCollectedObjectIsEvicted(t *testing.T) {
	rt, ft := newStartedRuntime(t, nil)

	inv := &recordingInvoker{}
	ref := registerCollectable(t, rt, inv)

	// Force collection of the observer; the weak handle must clear.
	runtime.GC()
	runtime.GC()

	req := message.NewRequest(grain.NewReference(ref.GrainID), &grain.InvokeRequest{DebugName: "Call"})
	ft.Deliver(req)

	assert.Eventually(t, func() bool {
		return rt.localObjects.Len() == 0 && len(ft.Unregistered()) == 1
	}, 2*time.Second, 10*time.Millisecond, "entry evicted and observer unregistered upstream")

	assert.Empty(t, inv.recorded(), "no invocation on a collected target")
}
