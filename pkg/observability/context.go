package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDCtxKey      contextKey = "request_id"
	subscriptionIDCtxKey contextKey = "subscription_id"
)

// Standard attribute keys used in logs.
const (
	RequestIDKey      = "request_id"
	SubscriptionIDKey = "subscription_id"
	DurationKey       = "duration_ms"
	ErrorKey          = "error"
	StatusKey         = "status"
)

// WithRequestID adds a request ID to the context.
// If id is empty, a new UUID is generated.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithSubscriptionID adds a subscription ID to the context so settlement
// logs can be correlated across the executor, lock manager, and monitor.
func WithSubscriptionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, subscriptionIDCtxKey, id)
}

// SubscriptionIDFromContext extracts the subscription ID from context.
func SubscriptionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(subscriptionIDCtxKey).(string); ok {
		return id
	}
	return ""
}
