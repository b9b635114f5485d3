// Package worker provides a generic, thread-safe worker pool.
//
// The client runtime schedules per-object pump drains on a shared pool:
// each drain task serializes one callback object's queue while distinct
// objects run concurrently across the workers. The pool owns a fixed
// number of goroutines reading from a bounded channel, so goroutine and
// memory overhead stay constant regardless of load.
//
// Submit is non-blocking: a full queue returns ErrQueueFull, which is the
// backpressure signal that workers cannot keep up. Statistics are always
// tracked with atomics; Prometheus metrics are opt-in via
// WithMetricsRegistry.
//
//	pool := worker.NewPool[drainTask](8, 1024, runDrain)
//	if err := pool.Start(ctx); err != nil { ... }
//	defer pool.Stop(5 * time.Second)
package worker
