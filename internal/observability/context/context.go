package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}

// Actor identifies the authenticated principal of a request.
type Actor struct {
	Name string
	Role string
}

// Subject returns the casbin subject for the actor.
func (a Actor) Subject() string {
	return "user:" + strings.TrimSpace(a.Name)
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" when missing.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the authenticated actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if strings.TrimSpace(actor.Name) == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor when the request is authenticated.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
