package entity

import "github.com/google/uuid"

type UserRole string

const (
	RoleClient UserRole = "client"
	RoleArtist UserRole = "artist"
	RoleAdmin  UserRole = "admin"
	RoleSystem UserRole = "system"
)

// Actor is the caller behind a command. Identities are issued by the
// external identity service; the engine only carries them through.
type Actor struct {
	UserID uuid.UUID
	Role   UserRole
	Name   string
}

// SystemActor drives time-based transitions. It has no user id and is
// recorded in the audit log without a human actor.
var SystemActor = Actor{Role: RoleSystem, Name: "system"}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

func (a Actor) Is(id uuid.UUID) bool {
	return a.UserID != uuid.Nil && a.UserID == id
}
