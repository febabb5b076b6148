package auth

import (
	"errors"
	"slices"
)

// Role represents an authorisation tier of an API caller.
type Role string

const (
	// RoleViewer can read states, history and automation runs.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally call services, i.e. change modes,
	// target temperatures and the climate switch.
	RoleOperator Role = "operator"

	// RoleAdmin can additionally run config and options flows and remove
	// config entries.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrInvalidRole    = errors.New("invalid role")
	ErrSecretRequired = errors.New("jwt secret is required")
	ErrForbidden      = errors.New("insufficient permissions")
)
