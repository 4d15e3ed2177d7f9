// Package rbac maps roles to permission sets through a static lookup table.
package rbac

import "github.com/formxchange/auth-service/internal/server/models"

var rolePermissions = map[models.Role][]string{
	models.RoleAdmin:       {"form:*", "user:*", "admin:*"},
	models.RoleFormBuilder: {"form:create", "form:read", "form:update", "form:delete", "form:publish"},
	models.RoleFormUser:    {"form:read", "form:submit", "submission:read", "submission:update"},
	models.RoleViewer:      {"form:read", "submission:read"},
}

// PermissionsFor returns the deduplicated union of permissions granted by the
// given roles, in first-seen order. Unknown roles grant nothing.
func PermissionsFor(roles []models.Role) []string {
	seen := make(map[string]struct{})
	permissions := make([]string, 0)

	for _, role := range roles {
		for _, p := range rolePermissions[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			permissions = append(permissions, p)
		}
	}

	return permissions
}
