package rbac

import "github.com/pilab-dev/planauth/domain"

// User management
const (
	PermUsersDeleteAll = "users:delete_all"
)

// RoleToPermissionsMap maps roles to their granted permissions. Roles
// without an entry hold no permissions beyond being authenticated.
var RoleToPermissionsMap = map[string][]string{
	domain.RoleAdmin: {PermUsersDeleteAll},
}

// HasPermission checks if a role grants a specific permission.
func HasPermission(role string, requiredPermission string) bool {
	for _, perm := range RoleToPermissionsMap[role] {
		if perm == requiredPermission {
			return true
		}
	}
	return false
}
