package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleScopes(t *testing.T) {
	tests := []struct {
		role     Role
		expected Scope
	}{
		{RoleSystemOwner, ScopeSystem},
		{RoleSystemAdmin, ScopeSystem},
		{RoleIndependent, ScopeSystem},
		{RoleOrgOwner, ScopeOrganization},
		{RoleOrgAdmin, ScopeOrganization},
		{RoleOrgEngineer, ScopeOrganization},
		{RoleOrgSupervisor, ScopeOrganization},
		{RoleOrgTechnician, ScopeOrganization},
		{RoleOrgAssistant, ScopeOrganization},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.expected, RoleScope(tt.role))
		})
	}

	assert.Equal(t, Scope(""), RoleScope(Role("bogus")))
}

func TestValidRole(t *testing.T) {
	for _, r := range AllRoles() {
		assert.True(t, ValidRole(r), "role %s should be valid", r)
	}
	assert.False(t, ValidRole(Role("manager")))
	assert.False(t, ValidRole(Role("")))
}

func TestSystemRolesPrecedeOrgRoles(t *testing.T) {
	for _, sys := range []Role{RoleSystemOwner, RoleSystemAdmin, RoleIndependent} {
		for _, org := range []Role{RoleOrgOwner, RoleOrgAdmin, RoleOrgEngineer, RoleOrgSupervisor, RoleOrgTechnician, RoleOrgAssistant} {
			assert.Equal(t, MorePrivileged, CompareRole(sys, org),
				"%s should outrank %s", sys, org)
		}
	}
}

// Default permission sets must be monotonic with seniority: a strictly more
// senior role in the same scope holds a superset of every junior role's set.
func TestPermissionMonotonicity(t *testing.T) {
	roles := AllRoles()
	for i, senior := range roles {
		for _, junior := range roles[i+1:] {
			if RoleScope(senior) != RoleScope(junior) {
				continue
			}
			seniorSet := NewSet(DefaultPermissions(senior))
			for _, p := range DefaultPermissions(junior) {
				assert.True(t, seniorSet.Has(p),
					"%s is missing %s granted to junior role %s", senior, p, junior)
			}
		}
	}
}

func TestDefaultPermissionsTotal(t *testing.T) {
	for _, r := range AllRoles() {
		// Total function: every enumerated role resolves without panic and
		// grants at least view access somewhere.
		perms := DefaultPermissions(r)
		require.NotEmpty(t, perms, "role %s has no default grants", r)
	}

	assert.Empty(t, DefaultPermissions(Role("bogus")))
}

func TestDefaultPermissionsReturnsCopy(t *testing.T) {
	first := DefaultPermissions(RoleOrgAssistant)
	first[0] = Permission{Area: AreaUsers, Action: ActionDelete}

	second := DefaultPermissions(RoleOrgAssistant)
	assert.NotContains(t, second, Permission{Area: AreaUsers, Action: ActionDelete})
}

func TestAllPermissionsCardinality(t *testing.T) {
	assert.Len(t, AllPermissions(), len(AllAreas())*len(AllActions()))
}

func TestEnumeratedOrgDefaults(t *testing.T) {
	supervisor := NewSet(DefaultPermissions(RoleOrgSupervisor))
	assert.True(t, supervisor.Has(Permission{Area: AreaTasks, Action: ActionAssign}))
	assert.True(t, supervisor.Has(Permission{Area: AreaTasks, Action: ActionApprove}))
	assert.False(t, supervisor.Has(Permission{Area: AreaUsers, Action: ActionAssign}))
	assert.False(t, supervisor.Has(Permission{Area: AreaSettings, Action: ActionEdit}))

	assistant := NewSet(DefaultPermissions(RoleOrgAssistant))
	assert.True(t, assistant.Has(Permission{Area: AreaTasks, Action: ActionView}))
	assert.False(t, assistant.Has(Permission{Area: AreaTasks, Action: ActionCreate}))
}
