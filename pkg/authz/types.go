package authz

// Area represents a resource area permissions apply to
type Area string

const (
	AreaUsers     Area = "users"
	AreaTasks     Area = "tasks"
	AreaReports   Area = "reports"
	AreaSettings  Area = "settings"
	AreaTools     Area = "tools"
	AreaDashboard Area = "dashboard"
	AreaData      Area = "data"
)

// Action represents an action that can be performed on an area
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionAssign  Action = "assign"
)

// Permission is an opaque capability token: one (area, action) pair.
type Permission struct {
	Area   Area   `json:"area"`
	Action Action `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Area) + ":" + string(p.Action)
}

// Role identifies a position in the shared role enumeration
type Role string

const (
	// System-scope roles
	RoleSystemOwner Role = "system:owner"
	RoleSystemAdmin Role = "system:admin"
	RoleIndependent Role = "independent"

	// Organization-scope roles
	RoleOrgOwner      Role = "org:owner"
	RoleOrgAdmin      Role = "org:admin"
	RoleOrgEngineer   Role = "org:engineer"
	RoleOrgSupervisor Role = "org:supervisor"
	RoleOrgTechnician Role = "org:technician"
	RoleOrgAssistant  Role = "org:assistant"
)

// Scope represents whether a role applies system-wide or within one organization
type Scope string

const (
	ScopeSystem       Scope = "system"
	ScopeOrganization Scope = "organization"
)

// Comparison is the result of a seniority comparison between two roles
type Comparison int

const (
	Incomparable Comparison = iota
	MorePrivileged
	EqualPrivilege
	LessPrivileged
)

func (c Comparison) String() string {
	switch c {
	case MorePrivileged:
		return "more-privileged"
	case EqualPrivilege:
		return "equal"
	case LessPrivileged:
		return "less-privileged"
	default:
		return "incomparable"
	}
}

// Set is a set of permissions keyed by (area, action).
type Set map[Permission]struct{}

// NewSet builds a Set from a slice, deduplicating entries.
func NewSet(perms []Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the permission.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts a permission into the set.
func (s Set) Add(p Permission) {
	s[p] = struct{}{}
}

// Slice returns the set's permissions in unspecified order.
func (s Set) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}
