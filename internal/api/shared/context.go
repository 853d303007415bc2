package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type of request-scoped context keys.
type ContextKey string

// Context keys for request-scoped values
const (
	// RequesterIDContextKey holds the authenticated requester id (JWT subject).
	RequesterIDContextKey ContextKey = "requesterID"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID adds a fresh trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, uuid.NewString())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithRequesterID stores the authenticated requester id.
func WithRequesterID(ctx context.Context, requesterID string) context.Context {
	return context.WithValue(ctx, RequesterIDContextKey, requesterID)
}

// GetRequesterID returns the authenticated requester id, if any.
func GetRequesterID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequesterIDContextKey).(string)
	return id, ok && id != ""
}
