// Package authz holds the static role table and the permission and route
// checks derived from it. Every function fails closed on unknown input.
package authz

import "strings"

// Role identifies one of the five user roles.
type Role string

const (
	RoleGovernor          Role = "governor"
	RoleSecretaryGeneral  Role = "secretary_general"
	RolePersonalSecretary Role = "personal_secretary"
	RoleDivisionHead      Role = "division_head"
	RoleAdmin             Role = "admin"
)

// Roles returns every role in the order they appear in the role table.
func Roles() []Role {
	return []Role{RoleGovernor, RoleSecretaryGeneral, RolePersonalSecretary, RoleDivisionHead, RoleAdmin}
}

// ParseRole converts a raw role identifier, accepting the hyphenated route form
// ("secretary-general") as well as the canonical one.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	_, ok := Config(r)
	return ok
}

// String returns the canonical identifier.
func (r Role) String() string {
	return string(r)
}

// Action is an operation a role may perform on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionManage grants every other action on the resource.
	ActionManage Action = "manage"
)

// Resource names a protected domain area.
type Resource string

const (
	ResourceTasks            Resource = "tasks"
	ResourceCalendar         Resource = "calendar"
	ResourceStatistics       Resource = "statistics"
	ResourceDivisions        Resource = "divisions"
	ResourceReports          Resource = "reports"
	ResourceFollowUp         Resource = "followup"
	ResourceDivisionTasks    Resource = "division_tasks"
	ResourceDocuments        Resource = "documents"
	ResourceOwnDivisionTasks Resource = "own_division_tasks"
	ResourceDivisionReports  Resource = "division_reports"
	ResourceDivisionMembers  Resource = "division_members"
	ResourceUsers            Resource = "users"
	ResourceSystem           Resource = "system"
)

// Permission lists the actions granted on a resource.
type Permission struct {
	Resource Resource `yaml:"resource" json:"resource"`
	Actions  []Action `yaml:"actions" json:"actions"`
}

// RoleConfig is one row of the role table.
type RoleConfig struct {
	Role           Role         `yaml:"role" json:"role"`
	Permissions    []Permission `yaml:"permissions" json:"permissions"`
	CanManageRoles []Role       `yaml:"can_manage_roles,omitempty" json:"can_manage_roles,omitempty"`
	DashboardPath  string       `yaml:"dashboard_path" json:"dashboard_path"`
}

var crud = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

func readOnly() []Action { return []Action{ActionRead} }

func crudActions() []Action { return append([]Action(nil), crud...) }

// Config returns a fresh copy of the role table entry for r.
// The switch is exhaustive over the role set; callers may mutate the result freely.
func Config(r Role) (RoleConfig, bool) {
	switch r {
	case RoleGovernor:
		return RoleConfig{
			Role: r,
			Permissions: []Permission{
				{Resource: ResourceTasks, Actions: readOnly()},
				{Resource: ResourceCalendar, Actions: readOnly()},
				{Resource: ResourceStatistics, Actions: readOnly()},
				{Resource: ResourceDivisions, Actions: readOnly()},
				{Resource: ResourceReports, Actions: readOnly()},
			},
			DashboardPath: dashboardPath(r),
		}, true
	case RoleSecretaryGeneral:
		return RoleConfig{
			Role: r,
			Permissions: []Permission{
				{Resource: ResourceTasks, Actions: readOnly()},
				{Resource: ResourceFollowUp, Actions: readOnly()},
				{Resource: ResourceDivisionTasks, Actions: readOnly()},
				{Resource: ResourceReports, Actions: readOnly()},
			},
			DashboardPath: dashboardPath(r),
		}, true
	case RolePersonalSecretary:
		return RoleConfig{
			Role: r,
			Permissions: []Permission{
				{Resource: ResourceTasks, Actions: crudActions()},
				{Resource: ResourceCalendar, Actions: crudActions()},
				{Resource: ResourceDocuments, Actions: crudActions()},
				{Resource: ResourceOwnDivisionTasks, Actions: []Action{ActionManage}},
			},
			DashboardPath: dashboardPath(r),
		}, true
	case RoleDivisionHead:
		return RoleConfig{
			Role: r,
			Permissions: []Permission{
				{Resource: ResourceDivisionTasks, Actions: crudActions()},
				{Resource: ResourceDivisionReports, Actions: []Action{ActionRead, ActionCreate}},
				{Resource: ResourceDivisionMembers, Actions: readOnly()},
			},
			DashboardPath: dashboardPath(r),
		}, true
	case RoleAdmin:
		return RoleConfig{
			Role: r,
			Permissions: []Permission{
				{Resource: ResourceUsers, Actions: crudActions()},
				{Resource: ResourceDivisions, Actions: crudActions()},
				{Resource: ResourceSystem, Actions: []Action{ActionRead, ActionManage}},
				{Resource: ResourceStatistics, Actions: readOnly()},
				{Resource: ResourceTasks, Actions: crudActions()},
			},
			CanManageRoles: []Role{RoleDivisionHead, RolePersonalSecretary},
			DashboardPath:  dashboardPath(r),
		}, true
	}
	return RoleConfig{}, false
}

// Table returns the full role table in role order.
func Table() []RoleConfig {
	roles := Roles()
	out := make([]RoleConfig, 0, len(roles))
	for _, r := range roles {
		cfg, _ := Config(r)
		out = append(out, cfg)
	}
	return out
}

// RoutePrefix is the URL path prefix of the role's area, e.g. "/secretary-general".
func RoutePrefix(r Role) string {
	return "/" + strings.ReplaceAll(string(r), "_", "-")
}

// DashboardPath returns the landing page for r, or "/login" for unknown roles.
func DashboardPath(r Role) string {
	cfg, ok := Config(r)
	if !ok {
		return loginPath
	}
	return cfg.DashboardPath
}

func dashboardPath(r Role) string {
	return RoutePrefix(r) + "/dashboard"
}
