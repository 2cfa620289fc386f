package types

import (
	"context"
	"time"
)

// Context Keys
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	tickIDKey    contextKey = "tick_id"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTickID stores the scheduler tick correlation ID in the context so that
// collaborators called during a tick can tag their logs and outbound calls.
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickIDKey, id)
}

// GetTickID retrieves the tick ID from the context.
func GetTickID(ctx context.Context) string {
	id, _ := ctx.Value(tickIDKey).(string)
	return id
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
