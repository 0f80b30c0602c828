// Package actor carries the caller identity resolved at the auth boundary.
package actor

import (
	"context"
	"strings"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleOperator   Role = "operator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleSystem     Role = "system"
)

func ParseRole(raw string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleStudent, RoleOperator, RoleAdmin, RoleSuperAdmin:
		return role, true
	default:
		return "", false
	}
}

// Actor is who is calling and in which role. It is passed explicitly to
// services and never re-derived below the HTTP layer.
type Actor struct {
	UserID string
	Role   Role
}

// System is used by background jobs.
var System = Actor{UserID: "system", Role: RoleSystem}

func (a Actor) Valid() bool {
	if strings.TrimSpace(a.UserID) == "" {
		return false
	}
	if a.Role == RoleSystem {
		return true
	}
	_, ok := ParseRole(string(a.Role))
	return ok
}

// IsStaff reports whether the actor may act on other users' payments.
func (a Actor) IsStaff() bool {
	switch a.Role {
	case RoleOperator, RoleAdmin, RoleSuperAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
