package client

import (
	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

// SendOptions controls one outbound invocation.
type SendOptions struct {
	// OneWay sends fire-and-forget: no callback is registered and no
	// result is ever delivered.
	OneWay bool

	// DebugContext tags the message for diagnostics.
	DebugContext string

	// GenericArguments carries concrete type arguments for generic grain
	// interfaces.
	GenericArguments string
}

// SendRequest stamps, addresses, registers, and hands an invocation to the
// transport. For two-way requests the sink observes exactly one Result:
// a value, a remote exception, or a timeout.
func (rt *Runtime) SendRequest(
	target grain.Reference,
	request *grain.InvokeRequest,
	sink CompletionSink,
	opts SendOptions,
) (message.CorrelationID, error) {
	if err := rt.ensureRunning("SendRequest"); err != nil {
		return 0, err
	}
	if !opts.OneWay && sink == nil {
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Runtime", "SendRequest", "completion sink validation")
	}

	var msg *message.Message
	if opts.OneWay {
		msg = message.NewOneWay(target, request)
	} else {
		msg = message.NewRequest(target, request)
	}

	rt.stampSender(msg)

	if target.IsSystemTarget() && target.TargetSilo != nil {
		silo := *target.TargetSilo
		msg.TargetSilo = &silo
		act := grain.SystemActivationID(target.GrainID, silo)
		msg.TargetActivation = &act
	}
	if opts.GenericArguments != "" {
		msg.GenericGrainType = opts.GenericArguments
	}
	if opts.DebugContext != "" {
		msg.DebugContext = opts.DebugContext
	}

	// Only expirable, non-system-target messages carry a stamp; the skew
	// allowance absorbs clock drift between client and silo.
	if msg.IsExpirable(rt.cfg) && !target.IsSystemTarget() {
		msg.SetExpiration(rt.responseTimeout + message.MaxClockSkew)
	}

	if !opts.OneWay {
		if _, err := rt.callbacks.Register(msg, sink, rt.tryResend, nil); err != nil {
			return 0, err
		}
	}

	if err := rt.transport.SendMessage(msg); err != nil {
		if !opts.OneWay {
			rt.callbacks.Unregister(msg.ID)
		}
		return 0, errors.Wrap(err, "Runtime", "SendRequest", "transport send")
	}

	if rt.metrics != nil {
		rt.metrics.RecordRequestSent(msg.Direction.String())
	}
	rt.counters.RequestsSent.Increment()
	return msg.ID, nil
}

// stampSender marks the message as originating from this client.
func (rt *Runtime) stampSender(msg *message.Message) {
	msg.SendingGrain = rt.identity.GrainID
	msg.SendingActivation = rt.identity.Activation
	if addr, err := rt.identity.Address(); err == nil {
		msg.SendingSilo = addr
	}
}

// tryResend is the callback registry's retry hook. It resends a timed-out
// request while the resend budget allows, rebinding the target for
// non-system targets so the gateway can pick a fresh activation.
func (rt *Runtime) tryResend(msg *message.Message) bool {
	if !msg.MayResend(rt.cfg) {
		return false
	}

	msg.ResendCount++
	msg.AddToTargetHistory()
	if !msg.TargetGrain.IsSystemTarget() {
		msg.ClearTargetBinding()
	}

	if err := rt.transport.SendMessage(msg); err != nil {
		rt.logger.Warn("Resend failed, letting the request time out",
			"correlation_id", msg.ID, "error", err)
		return false
	}

	if rt.metrics != nil {
		rt.metrics.RecordResend()
	}
	rt.counters.RequestResends.Increment()
	rt.logger.Debug("Resent request after timeout",
		"correlation_id", msg.ID, "resend_count", msg.ResendCount)
	return true
}

// sendResponse emits a response for an inbound request back through the
// transport.
func (rt *Runtime) sendResponse(reqMsg *message.Message, resp *message.Response) error {
	respMsg := reqMsg.CreateResponse(resp)
	rt.stampSender(respMsg)
	if err := rt.transport.SendMessage(respMsg); err != nil {
		return errors.Wrap(err, "Runtime", "sendResponse", "transport send")
	}
	if rt.metrics != nil {
		rt.metrics.RecordRequestSent(respMsg.Direction.String())
	}
	return nil
}
