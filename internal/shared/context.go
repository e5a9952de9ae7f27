package shared

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor describes the authenticated caller as supplied by the identity
// collaborator. The core trusts these values as given.
type Actor struct {
	UserID       uuid.UUID
	Capabilities map[string]struct{}
}

// Can reports whether the actor holds a capability.
func (a *Actor) Can(capability string) bool {
	if a == nil {
		return false
	}
	_, ok := a.Capabilities[capability]
	return ok
}

// ContextWithActor stores the actor on the context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the actor, or nil when unauthenticated.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey).(*Actor)
	return actor
}
