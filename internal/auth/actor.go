package auth

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the portal role supplied by the SSO gateway.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEngineer Role = "engineer"
	RoleUser     Role = "user"
	RoleSystem   Role = "system"
)

// SystemName is the display name for automated changes.
const SystemName = "System"

// Actor is an already-authenticated identity performing a core operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

// SystemActor attributes changes made by scheduled jobs.
func SystemActor() Actor {
	return Actor{ID: uuid.Nil, Name: SystemName, Role: RoleSystem}
}

// ParseRole normalizes a role header value. Unknown roles map to RoleUser.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleEngineer, RoleUser:
		return r
	default:
		return RoleUser
	}
}

// IsManager reports whether the actor may approve budgets and reviews.
func (a Actor) IsManager() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager || a.Role == RoleSystem
}
