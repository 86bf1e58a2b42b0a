package utils

import (
	"context"

	"gig-booking/internal/data/entity"

	"github.com/google/uuid"
)

type actorKey struct{}

// SetActorContext stores the verified caller identity.
func SetActorContext(ctx context.Context, actor entity.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActorFromContext returns the caller set by the auth middleware. An
// actor without a user id does not count.
func GetActorFromContext(ctx context.Context) (entity.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(entity.Actor)
	if !ok || actor.UserID == uuid.Nil {
		return entity.Actor{}, false
	}
	return actor, true
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	actor, ok := GetActorFromContext(ctx)
	return actor.UserID, ok
}
