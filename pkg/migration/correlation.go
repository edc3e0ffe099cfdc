package migration

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// NewCorrelationID returns a fresh token for one logical operation.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID attaches id to ctx. Coordinators adopt an id found on
// the context instead of generating one, which lets an inbound request ID
// flow through every log line.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the id attached to ctx, if any.
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

// correlationFor returns the id on ctx or a new one, and a ctx carrying it.
func correlationFor(ctx context.Context) (context.Context, string) {
	if id, ok := CorrelationIDFrom(ctx); ok {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}
