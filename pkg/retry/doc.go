// Package retry provides exponential backoff retry for the client runtime.
//
// It is used where the runtime talks to external collaborators that can be
// transiently unavailable: gateway list resolution and transport connect.
// Errors marked NonRetryable fail immediately.
//
// Usage:
//
//	cfg := retry.Quick()
//	err := retry.Do(ctx, cfg, func() error {
//	    return transport.Start(ctx)
//	})
package retry
