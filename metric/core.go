package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core client runtime metrics
type Metrics struct {
	// Request path metrics
	RequestsSent       *prometheus.CounterVec
	ResponsesCompleted *prometheus.CounterVec
	RequestTimeouts    prometheus.Counter
	RequestResends     prometheus.Counter
	CallbacksPending   prometheus.Gauge

	// Local object metrics
	LocalObjects       prometheus.Gauge
	InboundDispatched  *prometheus.CounterVec
	ExpiredDropped     prometheus.Counter
	DroppedMessages    *prometheus.CounterVec
	InvocationDuration prometheus.Histogram

	// Gateway metrics
	GatewayConnected  prometheus.Gauge
	GatewayRTT        prometheus.Gauge
	GatewayReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all core client metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "requests_sent_total",
				Help:      "Total number of outbound requests handed to the transport",
			},
			[]string{"direction"},
		),

		ResponsesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "responses_completed_total",
				Help:      "Total number of responses delivered to waiting callers",
			},
			[]string{"result"},
		),

		RequestTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "request_timeouts_total",
				Help:      "Total number of requests that timed out waiting for a response",
			},
		),

		RequestResends: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "request_resends_total",
				Help:      "Total number of request resends after timeout",
			},
		),

		CallbacksPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "callbacks_pending",
				Help:      "Number of outbound requests currently waiting for a response",
			},
		),

		LocalObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "local_objects",
				Help:      "Number of locally registered callback objects",
			},
		),

		InboundDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "inbound_dispatched_total",
				Help:      "Total number of inbound messages dispatched by the pump",
			},
			[]string{"direction"},
		),

		ExpiredDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "expired_dropped_total",
				Help:      "Total number of messages dropped because they expired",
			},
		),

		DroppedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "dropped_messages_total",
				Help:      "Total number of inbound messages dropped, by reason",
			},
			[]string{"reason"},
		),

		InvocationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "orleans",
				Subsystem: "client",
				Name:      "invocation_duration_seconds",
				Help:      "Duration of local callback object invocations",
				Buckets:   prometheus.DefBuckets,
			},
		),

		GatewayConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orleans",
				Subsystem: "gateway",
				Name:      "connected",
				Help:      "Gateway connection status (0=disconnected, 1=connected)",
			},
		),

		GatewayRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "orleans",
				Subsystem: "gateway",
				Name:      "rtt_milliseconds",
				Help:      "Gateway round-trip time in milliseconds",
			},
		),

		GatewayReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "orleans",
				Subsystem: "gateway",
				Name:      "reconnects_total",
				Help:      "Total number of gateway reconnections",
			},
		),
	}
}

// RecordRequestSent increments the outbound request counter
func (m *Metrics) RecordRequestSent(direction string) {
	m.RequestsSent.WithLabelValues(direction).Inc()
}

// RecordResponseCompleted increments the completed response counter
func (m *Metrics) RecordResponseCompleted(result string) {
	m.ResponsesCompleted.WithLabelValues(result).Inc()
}

// RecordTimeout increments the request timeout counter
func (m *Metrics) RecordTimeout() {
	m.RequestTimeouts.Inc()
}

// RecordResend increments the resend counter
func (m *Metrics) RecordResend() {
	m.RequestResends.Inc()
}

// SetCallbacksPending updates the pending callbacks gauge
func (m *Metrics) SetCallbacksPending(n int) {
	m.CallbacksPending.Set(float64(n))
}

// SetLocalObjects updates the local objects gauge
func (m *Metrics) SetLocalObjects(n int) {
	m.LocalObjects.Set(float64(n))
}

// RecordInboundDispatched increments the inbound dispatch counter
func (m *Metrics) RecordInboundDispatched(direction string) {
	m.InboundDispatched.WithLabelValues(direction).Inc()
}

// RecordExpiredDropped increments the expired message counter
func (m *Metrics) RecordExpiredDropped() {
	m.ExpiredDropped.Inc()
}

// RecordDropped increments the dropped message counter for a reason
func (m *Metrics) RecordDropped(reason string) {
	m.DroppedMessages.WithLabelValues(reason).Inc()
}

// RecordInvocationDuration records a local object invocation duration
func (m *Metrics) RecordInvocationDuration(d time.Duration) {
	m.InvocationDuration.Observe(d.Seconds())
}

// RecordGatewayStatus updates gateway connection status
func (m *Metrics) RecordGatewayStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.GatewayConnected.Set(value)
}

// RecordGatewayRTT updates gateway round-trip time
func (m *Metrics) RecordGatewayRTT(rtt time.Duration) {
	m.GatewayRTT.Set(float64(rtt.Milliseconds()))
}

// RecordGatewayReconnect increments the reconnection counter
func (m *Metrics) RecordGatewayReconnect() {
	m.GatewayReconnects.Inc()
}
