package grain

import "context"

// InvokeResult carries the outcome of a local object invocation.
type InvokeResult struct {
	Value any
	Err   error
}

// Invoker dispatches an invocation request onto a locally hosted callback
// object.
//
// Invoke returns a channel that yields exactly one InvokeResult when the
// invocation completes, or a nil channel for a one-way method (fire and
// forget, no result will ever be produced). An error return means the
// dispatch itself failed before the method ran.
type Invoker interface {
	Invoke(ctx context.Context, target any, request InvokeRequest) (<-chan InvokeResult, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, target any, request InvokeRequest) (<-chan InvokeResult, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, target any, request InvokeRequest) (<-chan InvokeResult, error) {
	return f(ctx, target, request)
}
