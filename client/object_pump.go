package client

import (
	"context"
	"fmt"
	"time"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

// CreateObjectReference registers a local callback object and returns the
// client-addressable reference remote grains can call back through. The
// registry holds obj weakly: dropping the caller's reference makes the
// entry collectable, after which inbound messages evict it.
func CreateObjectReference[T any](ctx context.Context, rt *Runtime, obj *T, invoker grain.Invoker) (grain.Reference, error) {
	if _, isRef := any(obj).(*grain.Reference); isRef {
		return grain.Reference{}, errors.WrapInvalid(
			fmt.Errorf("object is already a remote reference"),
			"Runtime", "CreateObjectReference", "local object validation")
	}
	return rt.createObjectReference(ctx, newWeakHandle(obj), invoker)
}

// createObjectReference allocates a fresh client-addressable grain id,
// announces it to the gateway, and installs the registry entry.
func (rt *Runtime) createObjectReference(ctx context.Context, handle weakHandle, invoker grain.Invoker) (grain.Reference, error) {
	if err := rt.ensureRunning("CreateObjectReference"); err != nil {
		return grain.Reference{}, err
	}
	if invoker == nil {
		return grain.Reference{}, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Runtime", "CreateObjectReference", "invoker validation")
	}

	id := grain.NewClientID()
	if err := rt.transport.RegisterObserver(ctx, id); err != nil {
		return grain.Reference{}, errors.Wrap(err, "Runtime", "CreateObjectReference", "observer registration")
	}

	rt.localObjects.Insert(&localObjectData{
		grainID: id,
		target:  handle,
		invoker: invoker,
	})
	rt.updateLocalObjectGauge()

	rt.logger.Debug("Registered local callback object", "grain_id", id)
	return grain.NewReference(id), nil
}

// DeleteObjectReference removes a local callback object and withdraws its
// gateway registration. Fails with ErrNotLocal if the reference was not
// created by this runtime.
func (rt *Runtime) DeleteObjectReference(ctx context.Context, ref grain.Reference) error {
	if !rt.localObjects.Remove(ref.GrainID) {
		return errors.WrapInvalid(errors.ErrNotLocal,
			"Runtime", "DeleteObjectReference", "local object lookup")
	}
	rt.updateLocalObjectGauge()

	if err := rt.transport.UnregisterObserver(ctx, ref.GrainID); err != nil {
		return errors.Wrap(err, "Runtime", "DeleteObjectReference", "observer unregistration")
	}
	return nil
}

func (rt *Runtime) updateLocalObjectGauge() {
	if rt.metrics != nil {
		rt.metrics.SetLocalObjects(rt.localObjects.Len())
	}
}

// drainTask is one scheduled drain of a local object's queue.
type drainTask struct {
	data *localObjectData
}

// enqueueLocal appends an inbound message to the object's queue and
// schedules a drain if the queue was idle.
func (rt *Runtime) enqueueLocal(data *localObjectData, msg *message.Message) {
	if !data.enqueue(msg) {
		return // a drain is already running and will pick this up
	}
	if err := rt.pumpPool.Submit(drainTask{data: data}); err != nil {
		// The pool is saturated or stopping; drain on a fresh goroutine so
		// the running flag cannot strand the queue.
		rt.logger.Warn("Pump pool rejected drain task, draining inline", "error", err)
		go rt.drainObject(rt.pumpCtx, data)
	}
}

// drainObject processes one object's queue in FIFO order. At most one
// drain runs per object at any instant; distinct objects drain
// concurrently on the pool.
func (rt *Runtime) drainObject(ctx context.Context, data *localObjectData) {
	for {
		msg, ok := data.dequeue()
		if !ok {
			return
		}
		if !rt.processLocalMessage(ctx, data, msg) {
			return
		}
	}
}

// processLocalMessage handles one inbound message for a local object.
// Returns false when draining must stop (target collected). Unexpected
// panics are swallowed so the pump stays alive.
func (rt *Runtime) processLocalMessage(ctx context.Context, data *localObjectData, msg *message.Message) (keepDraining bool) {
	keepDraining = true
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("Panic while processing local object message",
				"grain_id", data.grainID, "correlation_id", msg.ID, "panic", r)
		}
	}()

	if msg.IsExpired() {
		if rt.metrics != nil {
			rt.metrics.RecordExpiredDropped()
		}
		rt.counters.ExpiredDropped.Increment()
		rt.logger.Debug("Dropping expired inbound request", "correlation_id", msg.ID)
		return true
	}

	ctx = withRequestContext(ctx, msg)

	target, alive := data.target.Value()
	if !alive {
		rt.evictCollected(data, msg)
		return false
	}

	req, err := rt.decodeInvokeRequest(msg)
	if err != nil {
		rt.logger.Warn("Undecodable invocation body", "correlation_id", msg.ID, "error", err)
		if msg.Direction == message.DirectionRequest {
			_ = rt.sendResponse(msg, message.NewExceptionResponseFromError(err))
		}
		return true
	}

	start := time.Now()
	resultCh, err := data.invoker.Invoke(ctx, target, req)
	if err != nil {
		rt.reportInvocationError(msg, err)
		return true
	}
	if resultCh == nil {
		// One-way method, nothing to await or emit.
		return true
	}

	select {
	case res := <-resultCh:
		if rt.metrics != nil {
			rt.metrics.RecordInvocationDuration(time.Since(start))
		}
		if res.Err != nil {
			rt.reportInvocationError(msg, res.Err)
			return true
		}
		if msg.Direction != message.DirectionOneWay {
			rt.respondWithValue(msg, res.Value)
		}
	case <-ctx.Done():
		rt.logger.Debug("Invocation abandoned on shutdown", "correlation_id", msg.ID)
	}
	return true
}

// respondWithValue deep-copies the result and emits a value response.
// Copy failures become exception responses carrying the copy failure.
// Responses for already-expired requests are dropped.
func (rt *Runtime) respondWithValue(msg *message.Message, value any) {
	if msg.IsExpired() {
		if rt.metrics != nil {
			rt.metrics.RecordExpiredDropped()
		}
		return
	}

	copied, err := rt.serializer.DeepCopy(value)
	if err != nil {
		rt.logger.Warn("Deep copy of invocation result failed",
			"correlation_id", msg.ID, "error", err)
		copyErr := errors.WrapInvalid(err, "Runtime", "respondWithValue", "result deep copy")
		if sendErr := rt.sendResponse(msg, message.NewExceptionResponseFromError(copyErr)); sendErr != nil {
			rt.logger.Warn("Failed to send copy-failure response", "correlation_id", msg.ID, "error", sendErr)
		}
		return
	}

	if err := rt.sendResponse(msg, message.NewValueResponse(copied)); err != nil {
		rt.logger.Warn("Failed to send response", "correlation_id", msg.ID, "error", err)
	}
}

// reportInvocationError emits an exception response for two-way requests
// and logs for one-ways.
func (rt *Runtime) reportInvocationError(msg *message.Message, invokeErr error) {
	if msg.Direction != message.DirectionRequest {
		rt.logger.Warn("One-way invocation failed",
			"grain_id", msg.TargetGrain, "correlation_id", msg.ID, "error", invokeErr)
		return
	}
	if err := rt.sendResponse(msg, message.NewExceptionResponseFromError(invokeErr)); err != nil {
		rt.logger.Warn("Failed to send exception response", "correlation_id", msg.ID, "error", err)
	}
}

// evictCollected removes the entry for a collected callback object,
// withdraws the gateway registration in the background, and drops the
// message with a warning. Unregistration errors are logged, never
// propagated.
func (rt *Runtime) evictCollected(data *localObjectData, msg *message.Message) {
	rt.localObjects.Remove(data.grainID)
	data.abandon()
	rt.updateLocalObjectGauge()

	rt.logger.Warn("Local callback object collected, dropping message",
		"grain_id", data.grainID, "correlation_id", msg.ID)
	if rt.metrics != nil {
		rt.metrics.RecordDropped("target_collected")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.transport.UnregisterObserver(ctx, data.grainID); err != nil {
			rt.logger.Warn("Failed to unregister collected observer",
				"grain_id", data.grainID, "error", err)
		}
	}()
}

// decodeInvokeRequest recovers the typed invocation request from a message
// body, which may be in wire form (generic JSON) or already typed when the
// message never crossed the transport.
func (rt *Runtime) decodeInvokeRequest(msg *message.Message) (grain.InvokeRequest, error) {
	switch body := msg.Body.(type) {
	case grain.InvokeRequest:
		return body, nil
	case *grain.InvokeRequest:
		return *body, nil
	default:
		data, err := rt.serializer.Marshal(body)
		if err != nil {
			return grain.InvokeRequest{}, err
		}
		var req grain.InvokeRequest
		if err := rt.serializer.Unmarshal(data, &req); err != nil {
			return grain.InvokeRequest{}, err
		}
		return req, nil
	}
}
