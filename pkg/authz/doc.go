// Package authz implements the role table and permission resolver for the
// authorization engine.
//
// # Overview
//
// Two disjoint role hierarchies share one enumeration: system-scope roles
// (system:owner, system:admin, independent) and organization-scope roles
// (org:owner through org:assistant). A single fixed total order defines
// seniority across the whole enumeration; system-scope roles precede all
// organization-scope roles.
//
// # Permission Model
//
// A permission is an (area, action) pair, e.g. {tasks, approve}. Each role has
// an immutable default permission set, monotonic with seniority inside its
// scope. An identity's effective set is the union of its role defaults and its
// per-identity custom grants, except that the four accountable-owner roles
// (system:owner, system:admin, org:owner, org:admin) short-circuit to a
// blanket grant over their scope regardless of custom overrides.
//
// # Usage
//
//	perms := authz.EffectivePermissions(authz.RoleOrgSupervisor, identity.CustomPermissions)
//	if !authz.IsAuthorized(role, custom, authz.Permission{Area: authz.AreaUsers, Action: authz.ActionAssign}) {
//		// reject
//	}
//
//	switch authz.CompareRole(acting, requested) {
//	case authz.MorePrivileged, authz.EqualPrivilege:
//		// acting identity may grant the requested role
//	}
//
// All functions are pure: no I/O, no shared state, safe on hot authorization
// paths. Point queries return values, never errors.
//
// # Related Packages
//
//   - pkg/claimsync: the only writer of role and custom-permission changes
//   - pkg/tenancy: membership re-validation for organization-scoped operations
package authz
