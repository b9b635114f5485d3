package client

import (
	"context"

	"github.com/muntasirraihan/orleans/message"
)

// runMessagePump is the single long-running consumer of
// application-category messages. It exits when WaitMessage returns nil,
// which the transport guarantees on cancellation or stop.
func (rt *Runtime) runMessagePump(ctx context.Context) {
	defer rt.pumpWG.Done()
	rt.logger.Debug("Inbound pump started")

	for {
		msg := rt.transport.WaitMessage(ctx, message.CategoryApplication)
		if msg == nil {
			rt.logger.Debug("Inbound pump stopped")
			return
		}
		rt.dispatchInbound(msg)
	}
}

// dispatchInbound routes one inbound message. Unexpected failures
// terminate the current iteration only, never the pump.
func (rt *Runtime) dispatchInbound(msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("Panic dispatching inbound message",
				"correlation_id", msg.ID, "panic", r)
		}
	}()

	if rt.metrics != nil {
		rt.metrics.RecordInboundDispatched(msg.Direction.String())
	}
	rt.counters.MessagesReceived.Increment()

	switch msg.Direction {
	case message.DirectionResponse:
		rt.callbacks.Complete(msg)

	case message.DirectionRequest, message.DirectionOneWay:
		data, ok := rt.localObjects.Lookup(msg.TargetGrain)
		if !ok {
			if rt.dropLimiter.Allow() {
				rt.logger.Warn("No local object for inbound request, dropping",
					"grain_id", msg.TargetGrain, "correlation_id", msg.ID)
			}
			if rt.metrics != nil {
				rt.metrics.RecordDropped("target_not_found")
			}
			return
		}
		rt.enqueueLocal(data, msg)

	default:
		rt.logger.Warn("Unsupported message direction",
			"direction", int(msg.Direction), "correlation_id", msg.ID)
	}
}
