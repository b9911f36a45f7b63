package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Seniority comparison must be transitive across the whole enumeration.
func TestCompareRoleTransitivity(t *testing.T) {
	roles := AllRoles()
	for _, a := range roles {
		for _, b := range roles {
			for _, c := range roles {
				if CompareRole(a, b) == MorePrivileged && CompareRole(b, c) == MorePrivileged {
					assert.Equal(t, MorePrivileged, CompareRole(a, c),
						"transitivity broken: %s > %s > %s", a, b, c)
				}
			}
		}
	}
}

func TestCompareRole(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Role
		expected Comparison
	}{
		{"owner outranks admin", RoleOrgOwner, RoleOrgAdmin, MorePrivileged},
		{"admin under owner", RoleOrgAdmin, RoleOrgOwner, LessPrivileged},
		{"same role", RoleOrgEngineer, RoleOrgEngineer, EqualPrivilege},
		{"system owner over everything", RoleSystemOwner, RoleOrgOwner, MorePrivileged},
		{"unknown left", Role("manager"), RoleOrgOwner, Incomparable},
		{"unknown right", RoleOrgOwner, Role(""), Incomparable},
		{"both unknown", Role("x"), Role("y"), Incomparable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareRole(tt.a, tt.b))
		})
	}
}

func TestAtLeastAsPrivileged(t *testing.T) {
	assert.True(t, AtLeastAsPrivileged(RoleOrgOwner, RoleOrgOwner))
	assert.True(t, AtLeastAsPrivileged(RoleOrgOwner, RoleOrgAssistant))
	assert.False(t, AtLeastAsPrivileged(RoleOrgAdmin, RoleOrgOwner))
	assert.False(t, AtLeastAsPrivileged(Role("bogus"), RoleOrgAssistant))
}

// The four accountable-owner roles hold every permission in scope regardless
// of custom overrides.
func TestBlanketGrantRoles(t *testing.T) {
	for _, role := range []Role{RoleSystemOwner, RoleSystemAdmin, RoleOrgOwner, RoleOrgAdmin} {
		t.Run(string(role), func(t *testing.T) {
			for _, p := range AllPermissions() {
				assert.True(t, IsAuthorized(role, nil, p),
					"%s should hold %s", role, p)
			}
			// Custom overrides cannot narrow a blanket grant.
			custom := []Permission{{Area: AreaTasks, Action: ActionView}}
			assert.True(t, IsAuthorized(role, custom, Permission{Area: AreaUsers, Action: ActionDelete}))
		})
	}
}

func TestEffectivePermissionsUnion(t *testing.T) {
	custom := []Permission{
		{Area: AreaReports, Action: ActionApprove},
		{Area: AreaTools, Action: ActionEdit},
	}

	set := EffectivePermissions(RoleOrgTechnician, custom)

	// Role defaults are present.
	assert.True(t, set.Has(Permission{Area: AreaTasks, Action: ActionEdit}))
	// Custom grants are layered on top.
	assert.True(t, set.Has(Permission{Area: AreaReports, Action: ActionApprove}))
	assert.True(t, set.Has(Permission{Area: AreaTools, Action: ActionEdit}))
	// Nothing else leaks in.
	assert.False(t, set.Has(Permission{Area: AreaUsers, Action: ActionAssign}))
}

func TestIsAuthorizedCustomGrant(t *testing.T) {
	perm := Permission{Area: AreaData, Action: ActionDelete}

	assert.False(t, IsAuthorized(RoleOrgAssistant, nil, perm))
	assert.True(t, IsAuthorized(RoleOrgAssistant, []Permission{perm}, perm))
}

func TestIsAuthorizedUnknownRole(t *testing.T) {
	// Unknown roles have no defaults; they only hold explicit custom grants.
	perm := Permission{Area: AreaTasks, Action: ActionView}
	assert.False(t, IsAuthorized(Role("bogus"), nil, perm))
	assert.True(t, IsAuthorized(Role("bogus"), []Permission{perm}, perm))
}

func TestPermissionString(t *testing.T) {
	p := Permission{Area: AreaTasks, Action: ActionApprove}
	assert.Equal(t, "tasks:approve", p.String())
}

func TestSetOperations(t *testing.T) {
	s := NewSet([]Permission{
		{Area: AreaTasks, Action: ActionView},
		{Area: AreaTasks, Action: ActionView}, // duplicate collapses
	})
	assert.Len(t, s.Slice(), 1)

	s.Add(Permission{Area: AreaData, Action: ActionView})
	assert.Len(t, s.Slice(), 2)
	assert.True(t, s.Has(Permission{Area: AreaData, Action: ActionView}))
}
