package rbac

import "voice-agent-platform/internal/auth"

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleService = auth.RoleService
)

// BypassesOwnership reports whether role may act on agents owned by any user.
func BypassesOwnership(role string) bool {
	return role == RoleAdmin || role == RoleService
}

func IsKnown(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleService:
		return true
	default:
		return false
	}
}
