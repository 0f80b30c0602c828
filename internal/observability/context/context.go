package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type naturalKeyKey struct{}

type actorValue struct {
	role string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActor records who is acting for logging only. Authorization never reads it.
func WithActor(ctx context.Context, role, id string) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorValue{
		role: strings.TrimSpace(role),
		id:   strings.TrimSpace(id),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actorValue)
	if !ok {
		return "", ""
	}
	return value.role, value.id
}

func WithNaturalKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if ctx == nil || key == "" {
		return ctx
	}
	return context.WithValue(ctx, naturalKeyKey{}, key)
}

func NaturalKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(naturalKeyKey{}).(string)
	return value
}
