package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	tickIDKey    contextKey = "tick_id"
	requestIDKey contextKey = "request_id"
)

// WithTickID tags the context with a fresh scheduler tick id.
func WithTickID(ctx context.Context) context.Context {
	return context.WithValue(ctx, tickIDKey, uuid.NewString())
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetTickID retrieves the tick ID from the context.
// Returns empty string if not present.
func GetTickID(ctx context.Context) string {
	if id, ok := ctx.Value(tickIDKey).(string); ok {
		return id
	}
	return ""
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
