package client

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/message"
	"github.com/muntasirraihan/orleans/metric"
)

// Result is what a completion sink eventually observes: a value, a remote
// exception, or a timeout. Exactly one Result is delivered per two-way
// request.
type Result struct {
	Value any
	Err   error
}

// CompletionSink receives the single Result of a request. Sinks must have
// capacity for one element; delivery never blocks the pump.
type CompletionSink chan<- Result

// retryHook decides whether a timed-out request gets another attempt.
// Returning true keeps the callback alive with a fresh timer.
type retryHook func(*message.Message) bool

// callbackData tracks one outstanding two-way request. Exclusively owned
// by the registry until the response arrives, the timer expires, or the
// caller unregisters.
type callbackData struct {
	id           message.CorrelationID
	msg          *message.Message
	sink         CompletionSink
	retry        retryHook
	timeout      time.Duration
	onUnregister func()

	timer     *time.Timer
	timerMu   sync.Mutex
	completed atomic.Bool
}

// deliver hands the result to the sink at most once.
func (cd *callbackData) deliver(r Result) bool {
	if !cd.completed.CompareAndSwap(false, true) {
		return false
	}
	cd.stopTimer()
	select {
	case cd.sink <- r:
	default:
		// Sink contract violated (capacity 0 or already full); the result
		// is dropped rather than blocking the pump.
	}
	return true
}

func (cd *callbackData) stopTimer() {
	cd.timerMu.Lock()
	defer cd.timerMu.Unlock()
	if cd.timer != nil {
		cd.timer.Stop()
	}
}

func (cd *callbackData) restartTimer() {
	cd.timerMu.Lock()
	defer cd.timerMu.Unlock()
	if cd.timer != nil {
		cd.timer.Reset(cd.timeout)
	}
}

// callbackRegistry correlates responses to waiting callers. Lock-free at
// the map level; no lock is held across sink deliveries.
type callbackRegistry struct {
	entries sync.Map // message.CorrelationID -> *callbackData
	count   atomic.Int64

	responseTimeout time.Duration
	logger          *slog.Logger
	metrics         *metric.Metrics

	// Unknown-correlation warnings are throttled so a flood of late
	// responses cannot drown the log.
	unknownLimiter *rate.Limiter
}

func newCallbackRegistry(responseTimeout time.Duration, logger *slog.Logger, metrics *metric.Metrics) *callbackRegistry {
	return &callbackRegistry{
		responseTimeout: responseTimeout,
		logger:          logger.With("component", "callbacks"),
		metrics:         metrics,
		unknownLimiter:  rate.NewLimiter(rate.Every(5*time.Second), 3),
	}
}

// Register inserts a unique (id -> data) entry and starts its expiration
// timer. The response timeout is fixed here, at registration time.
func (r *callbackRegistry) Register(msg *message.Message, sink CompletionSink, retry retryHook, onUnregister func()) (*callbackData, error) {
	cd := &callbackData{
		id:           msg.ID,
		msg:          msg,
		sink:         sink,
		retry:        retry,
		timeout:      r.responseTimeout,
		onUnregister: onUnregister,
	}

	if _, loaded := r.entries.LoadOrStore(msg.ID, cd); loaded {
		return nil, errors.WrapInvalid(
			fmt.Errorf("correlation id %s already registered", msg.ID),
			"CallbackRegistry", "Register", "duplicate correlation check")
	}
	r.count.Add(1)
	r.updateGauge()

	cd.timerMu.Lock()
	cd.timer = time.AfterFunc(cd.timeout, func() { r.onTimeout(cd) })
	cd.timerMu.Unlock()

	return cd, nil
}

// onTimeout fires when no response arrived within the timeout. The retry
// hook is consulted on every timeout; each time it resends, the timer
// restarts. Once it declines, the caller observes a timeout and the entry
// is removed.
func (r *callbackRegistry) onTimeout(cd *callbackData) {
	if cd.completed.Load() {
		return
	}

	if cd.retry != nil && cd.retry(cd.msg) {
		// Resent: keep the callback, restart the timer for the new attempt.
		cd.restartTimer()
		return
	}

	if r.metrics != nil {
		r.metrics.RecordTimeout()
	}
	err := errors.WrapTransient(errors.ErrResponseTimeout,
		"CallbackRegistry", "onTimeout", fmt.Sprintf("request %s after %v", cd.id, cd.timeout))
	if cd.deliver(Result{Err: err}) {
		r.remove(cd.id)
		r.logger.Debug("Request timed out", "correlation_id", cd.id, "timeout", cd.timeout)
	}
}

// Complete routes a response message to its waiting caller. Unknown ids
// are logged and dropped; duplicate-request rejections are discarded
// silently, leaving the callback in place for the real response.
func (r *callbackRegistry) Complete(respMsg *message.Message) {
	resp := respMsg.Response
	if resp == nil {
		r.logger.Warn("Response message without response payload", "correlation_id", respMsg.ID)
		return
	}

	v, ok := r.entries.Load(respMsg.ID)
	if !ok {
		if r.unknownLimiter.Allow() {
			r.logger.Warn("Response for unknown correlation id", "correlation_id", respMsg.ID)
		}
		if r.metrics != nil {
			r.metrics.RecordDropped("unknown_correlation")
		}
		return
	}
	cd := v.(*callbackData)

	if resp.IsDuplicateRejection() {
		// Artifact of an idempotent resend the target already answered.
		return
	}

	var result Result
	switch resp.Kind {
	case message.ResultValue:
		result = Result{Value: resp.Value}
	case message.ResultException:
		result = Result{Err: resp.Exception}
	case message.ResultRejection:
		result = Result{Err: errors.WrapTransient(
			fmt.Errorf("request rejected: %s", resp.Rejection),
			"CallbackRegistry", "Complete", "gateway rejection")}
	}

	if cd.deliver(result) {
		r.remove(respMsg.ID)
		if r.metrics != nil {
			r.metrics.RecordResponseCompleted(resp.Kind.String())
		}
	}
}

// Unregister removes an entry if present.
func (r *callbackRegistry) Unregister(id message.CorrelationID) {
	r.remove(id)
}

func (r *callbackRegistry) remove(id message.CorrelationID) {
	v, loaded := r.entries.LoadAndDelete(id)
	if !loaded {
		return
	}
	cd := v.(*callbackData)
	cd.stopTimer()
	r.count.Add(-1)
	r.updateGauge()
	if cd.onUnregister != nil {
		cd.onUnregister()
	}
}

// Count returns the number of outstanding callbacks.
func (r *callbackRegistry) Count() int {
	return int(r.count.Load())
}

func (r *callbackRegistry) updateGauge() {
	if r.metrics != nil {
		r.metrics.SetCallbacksPending(int(r.count.Load()))
	}
}
