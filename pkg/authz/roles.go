package authz

// roleOrder is the fixed total order used for seniority comparisons, most
// privileged first. System-scope roles precede all organization-scope roles.
var roleOrder = []Role{
	RoleSystemOwner,
	RoleSystemAdmin,
	RoleIndependent,
	RoleOrgOwner,
	RoleOrgAdmin,
	RoleOrgEngineer,
	RoleOrgSupervisor,
	RoleOrgTechnician,
	RoleOrgAssistant,
}

var roleRank = func() map[Role]int {
	m := make(map[Role]int, len(roleOrder))
	for i, r := range roleOrder {
		m[r] = i
	}
	return m
}()

var roleScopes = map[Role]Scope{
	RoleSystemOwner:   ScopeSystem,
	RoleSystemAdmin:   ScopeSystem,
	RoleIndependent:   ScopeSystem,
	RoleOrgOwner:      ScopeOrganization,
	RoleOrgAdmin:      ScopeOrganization,
	RoleOrgEngineer:   ScopeOrganization,
	RoleOrgSupervisor: ScopeOrganization,
	RoleOrgTechnician: ScopeOrganization,
	RoleOrgAssistant:  ScopeOrganization,
}

// blanketRoles are the accountable owners of their scope. Their effective
// permission set is the full set, never an enumerated one.
var blanketRoles = map[Role]bool{
	RoleSystemOwner: true,
	RoleSystemAdmin: true,
	RoleOrgOwner:    true,
	RoleOrgAdmin:    true,
}

// AllRoles returns the full role enumeration in seniority order.
func AllRoles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// ValidRole reports whether r is part of the role enumeration.
func ValidRole(r Role) bool {
	_, ok := roleRank[r]
	return ok
}

// RoleScope returns the scope a role belongs to, or "" for unknown roles.
func RoleScope(r Role) Scope {
	return roleScopes[r]
}

// IsBlanketRole reports whether r carries an implicit blanket grant.
func IsBlanketRole(r Role) bool {
	return blanketRoles[r]
}

// AllAreas returns every resource area.
func AllAreas() []Area {
	return []Area{AreaUsers, AreaTasks, AreaReports, AreaSettings, AreaTools, AreaDashboard, AreaData}
}

// AllActions returns every action.
func AllActions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove, ActionAssign}
}

// ValidPermission reports whether p names a known area and action.
func ValidPermission(p Permission) bool {
	areaOK := false
	for _, a := range AllAreas() {
		if p.Area == a {
			areaOK = true
			break
		}
	}
	if !areaOK {
		return false
	}
	for _, a := range AllActions() {
		if p.Action == a {
			return true
		}
	}
	return false
}

// AllPermissions returns every (area, action) pair.
func AllPermissions() []Permission {
	areas := AllAreas()
	actions := AllActions()
	out := make([]Permission, 0, len(areas)*len(actions))
	for _, area := range areas {
		for _, action := range actions {
			out = append(out, Permission{Area: area, Action: action})
		}
	}
	return out
}

// Default grants for the enumerated (non-blanket) organization roles. Each
// tier extends the one below it so the table stays monotonic with seniority.
var (
	assistantDefaults = []Permission{
		{Area: AreaTasks, Action: ActionView},
		{Area: AreaDashboard, Action: ActionView},
	}

	technicianDefaults = append([]Permission{
		{Area: AreaTasks, Action: ActionCreate},
		{Area: AreaTasks, Action: ActionEdit},
		{Area: AreaData, Action: ActionView},
	}, assistantDefaults...)

	supervisorDefaults = append([]Permission{
		{Area: AreaTasks, Action: ActionApprove},
		{Area: AreaTasks, Action: ActionAssign},
		{Area: AreaUsers, Action: ActionView},
		{Area: AreaReports, Action: ActionView},
	}, technicianDefaults...)

	engineerDefaults = append([]Permission{
		{Area: AreaReports, Action: ActionCreate},
		{Area: AreaReports, Action: ActionEdit},
		{Area: AreaTools, Action: ActionView},
		{Area: AreaData, Action: ActionCreate},
		{Area: AreaData, Action: ActionEdit},
	}, supervisorDefaults...)
)

// DefaultPermissions returns the immutable default grant for a role. It is a
// total function: unknown roles get an empty set. Blanket roles and
// independent accounts (sole actors in their own workspace) default to the
// full permission set; tenancy scoping, not this table, is what separates
// workspaces.
func DefaultPermissions(r Role) []Permission {
	switch r {
	case RoleSystemOwner, RoleSystemAdmin, RoleIndependent, RoleOrgOwner, RoleOrgAdmin:
		return AllPermissions()
	case RoleOrgEngineer:
		return clonePermissions(engineerDefaults)
	case RoleOrgSupervisor:
		return clonePermissions(supervisorDefaults)
	case RoleOrgTechnician:
		return clonePermissions(technicianDefaults)
	case RoleOrgAssistant:
		return clonePermissions(assistantDefaults)
	default:
		return nil
	}
}

func clonePermissions(perms []Permission) []Permission {
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
