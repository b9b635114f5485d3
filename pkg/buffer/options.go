package buffer

import "github.com/muntasirraihan/orleans/metric"

// bufferOptions holds the configurable behavior for a buffer.
type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]
	metricsReg     *metric.MetricsRegistry
	metricsPrefix  string
}

// Option configures a buffer at construction time.
type Option[T any] func(*bufferOptions[T])

// WithOverflowPolicy sets the behavior when the buffer is full.
// The default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *bufferOptions[T]) {
		o.overflowPolicy = policy
	}
}

// WithDropCallback registers a callback invoked with each dropped item.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *bufferOptions[T]) {
		o.dropCallback = cb
	}
}

// WithMetrics enables Prometheus metrics under the given prefix.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(o *bufferOptions[T]) {
		o.metricsReg = registry
		o.metricsPrefix = prefix
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy: DropOldest,
	}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}
