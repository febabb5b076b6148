package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermStateRead      Permission = "state:read"
	PermHistoryRead    Permission = "history:read"
	PermServiceCall    Permission = "service:call"
	PermConfigManage   Permission = "config:manage"
	PermAutomationRead Permission = "automation:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStateRead,
		PermHistoryRead,
		PermAutomationRead,
	},
	RoleOperator: {
		PermStateRead,
		PermHistoryRead,
		PermAutomationRead,
		PermServiceCall,
	},
	RoleAdmin: {
		PermStateRead,
		PermHistoryRead,
		PermAutomationRead,
		PermServiceCall,
		PermConfigManage,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
