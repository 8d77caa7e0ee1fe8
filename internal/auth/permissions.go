package auth

import "slices"

// Permission is a named capability checked by the API.
type Permission string

const (
	PermProjectRead  Permission = "project:read"
	PermActionRun    Permission = "action:run"
	PermProjectEdit  Permission = "project:edit"
	PermSystemAdmin  Permission = "system:admin"
	PermAuditRead    Permission = "audit:read"
	PermModuleManage Permission = "module:manage"
)

// rolePermissions is the single source of the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermProjectRead,
	},
	RoleOperator: {
		PermProjectRead,
		PermActionRun,
	},
	RoleAdmin: {
		PermProjectRead,
		PermActionRun,
		PermProjectEdit,
		PermModuleManage,
		PermAuditRead,
		PermSystemAdmin,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions of role, nil for
// unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
