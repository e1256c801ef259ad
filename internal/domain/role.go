package domain

import "strings"

// Role enumerates principal roles. The zero value is not a valid role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role works tickets on behalf of others.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// ParseRole normalizes a role string. Unknown values are returned as-is so the
// policy layer can reject them explicitly.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}
