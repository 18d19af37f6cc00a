// Package auditctx carries the authenticated caller through request contexts so that
// service layers can attribute writes in their logs.
package auditctx

import (
	"context"

	"go.uber.org/zap"
)

// Actor captures contextual information about the authenticated actor that initiated a request.
type Actor struct {
	UserID    string
	Role      string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor injects actor metadata into the supplied context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts previously stored actor metadata from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Fields returns log fields describing the actor, or nil for anonymous requests.
func Fields(ctx context.Context) []zap.Field {
	actor, ok := FromContext(ctx)
	if !ok || actor.UserID == "" {
		return nil
	}
	fields := []zap.Field{zap.String("actor_id", actor.UserID)}
	if actor.Role != "" {
		fields = append(fields, zap.String("actor_role", actor.Role))
	}
	if actor.IPAddress != "" {
		fields = append(fields, zap.String("actor_ip", actor.IPAddress))
	}
	return fields
}
