package client

import (
	"context"

	"github.com/muntasirraihan/orleans/message"
)

// contextKey scopes request context values to this package.
type contextKey string

const (
	correlationKey  contextKey = "correlation-id"
	debugContextKey contextKey = "debug-context"
)

// withRequestContext imports the request's identity into the invocation
// context so callback implementations can observe it.
func withRequestContext(ctx context.Context, msg *message.Message) context.Context {
	ctx = context.WithValue(ctx, correlationKey, msg.ID)
	if msg.DebugContext != "" {
		ctx = context.WithValue(ctx, debugContextKey, msg.DebugContext)
	}
	return ctx
}

// CorrelationFromContext returns the correlation id of the request being
// served, if any.
func CorrelationFromContext(ctx context.Context) (message.CorrelationID, bool) {
	id, ok := ctx.Value(correlationKey).(message.CorrelationID)
	return id, ok
}

// DebugContextFromContext returns the request's debug tag, if any.
func DebugContextFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(debugContextKey).(string)
	return s, ok
}
