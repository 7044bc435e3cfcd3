package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role     Role
		resource Resource
		action   Action
		want     bool
	}{
		{RoleGovernor, ResourceCalendar, ActionRead, true},
		{RoleGovernor, ResourceCalendar, ActionCreate, false},
		{RoleGovernor, ResourceUsers, ActionRead, false},
		{RoleGovernor, ResourceTasks, ActionDelete, false},
		{RoleSecretaryGeneral, ResourceFollowUp, ActionRead, true},
		{RoleSecretaryGeneral, ResourceCalendar, ActionRead, false},
		{RolePersonalSecretary, ResourceCalendar, ActionDelete, true},
		{RolePersonalSecretary, ResourceOwnDivisionTasks, ActionDelete, true},
		{RolePersonalSecretary, ResourceOwnDivisionTasks, ActionCreate, true},
		{RolePersonalSecretary, ResourceUsers, ActionRead, false},
		{RoleDivisionHead, ResourceDivisionTasks, ActionUpdate, true},
		{RoleDivisionHead, ResourceDivisionReports, ActionDelete, false},
		{RoleDivisionHead, ResourceTasks, ActionRead, false},
		{RoleAdmin, ResourceUsers, ActionDelete, true},
		{RoleAdmin, ResourceSystem, ActionUpdate, true},
		{RoleAdmin, ResourceCalendar, ActionRead, false},
		{Role("mayor"), ResourceTasks, ActionRead, false},
		{Role(""), ResourceTasks, ActionRead, false},
	}

	for _, tc := range cases {
		name := string(tc.role) + "/" + string(tc.resource) + "/" + string(tc.action)
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, HasPermission(tc.role, tc.resource, tc.action))
		})
	}
}

func TestManageImpliesEveryAction(t *testing.T) {
	t.Parallel()

	cfg := RoleConfig{
		Role:        "custom",
		Permissions: []Permission{{Resource: ResourceReports, Actions: []Action{ActionManage}}},
	}
	for _, a := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage} {
		assert.True(t, cfg.Allows(ResourceReports, a), "action %s", a)
	}
	assert.False(t, cfg.Allows(ResourceTasks, ActionRead), "resource match is exact")
}

func TestCanAccessRoute(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role Role
		path string
		want bool
	}{
		{RoleGovernor, "/", true},
		{RoleGovernor, "/login", true},
		{RoleGovernor, "/governor/dashboard", true},
		{RoleGovernor, "/governor", true},
		{RoleGovernor, "/admin/users", false},
		{RoleSecretaryGeneral, "/secretary-general/followup", true},
		{RoleSecretaryGeneral, "/secretary_general/followup", false},
		{RolePersonalSecretary, "/personal-secretary/calendar", true},
		{RoleDivisionHead, "/division-head/tasks/42", true},
		{RoleAdmin, "/admin/users", true},
		{RoleAdmin, "/administration", true},
		{RoleAdmin, "/governor/dashboard", false},
		{Role("mayor"), "/mayor/dashboard", false},
		{Role("mayor"), "/login", false},
		{Role(""), "/", false},
	}

	for _, tc := range cases {
		t.Run(string(tc.role)+tc.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CanAccessRoute(tc.role, tc.path))
		})
	}
}

func TestRoleTable(t *testing.T) {
	t.Parallel()

	table := Table()
	require.Len(t, table, 5)
	for _, cfg := range table {
		assert.NotEmpty(t, cfg.Permissions, "role %s", cfg.Role)
		assert.True(t, CanAccessRoute(cfg.Role, cfg.DashboardPath), "dashboard of %s must be reachable", cfg.Role)
	}

	assert.Equal(t, "/secretary-general/dashboard", DashboardPath(RoleSecretaryGeneral))
	assert.Equal(t, "/login", DashboardPath("mayor"))
}

func TestConfigReturnsCopies(t *testing.T) {
	t.Parallel()

	cfg, ok := Config(RoleGovernor)
	require.True(t, ok)
	cfg.Permissions[0].Actions[0] = ActionDelete
	cfg.Permissions = append(cfg.Permissions, Permission{Resource: ResourceUsers, Actions: []Action{ActionManage}})

	assert.False(t, HasPermission(RoleGovernor, ResourceTasks, ActionDelete))
	assert.False(t, HasPermission(RoleGovernor, ResourceUsers, ActionRead))
}

func TestCanManageRole(t *testing.T) {
	t.Parallel()

	assert.True(t, CanManageRole(RoleAdmin, RoleDivisionHead))
	assert.True(t, CanManageRole(RoleAdmin, RolePersonalSecretary))
	assert.False(t, CanManageRole(RoleAdmin, RoleGovernor))
	assert.False(t, CanManageRole(RoleGovernor, RoleDivisionHead))
	assert.False(t, CanManageRole("mayor", RoleDivisionHead))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, ok := ParseRole("Secretary-General")
	require.True(t, ok)
	assert.Equal(t, RoleSecretaryGeneral, r)

	_, ok = ParseRole("mayor")
	assert.False(t, ok)
	assert.Nil(t, Permissions("mayor"))
}
