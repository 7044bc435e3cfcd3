package authz

import (
	"slices"
	"strings"
)

const (
	rootPath  = "/"
	loginPath = "/login"
)

// HasPermission reports whether role may perform action on resource.
// Unknown roles are denied. A grant of manage implies every action.
func HasPermission(role Role, resource Resource, action Action) bool {
	cfg, ok := Config(role)
	if !ok {
		return false
	}
	return cfg.Allows(resource, action)
}

// Allows applies the permission rule to this row of the table.
func (c RoleConfig) Allows(resource Resource, action Action) bool {
	for _, p := range c.Permissions {
		if p.Resource != resource {
			continue
		}
		if slices.Contains(p.Actions, action) || slices.Contains(p.Actions, ActionManage) {
			return true
		}
	}
	return false
}

// CanAccessRoute reports whether role may navigate to path. The root and login
// pages are open to every known role; any other path must start with the
// role's prefix. Unknown roles reach nothing.
func CanAccessRoute(role Role, path string) bool {
	if !role.Valid() {
		return false
	}
	if path == rootPath || path == loginPath {
		return true
	}
	return strings.HasPrefix(path, RoutePrefix(role))
}

// CanManageRole reports whether actor may administer accounts holding target.
func CanManageRole(actor, target Role) bool {
	cfg, ok := Config(actor)
	if !ok {
		return false
	}
	return slices.Contains(cfg.CanManageRoles, target)
}

// Permissions returns a copy of the permissions granted to role.
func Permissions(role Role) []Permission {
	cfg, ok := Config(role)
	if !ok {
		return nil
	}
	return cfg.Permissions
}
