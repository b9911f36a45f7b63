package authz

// EffectivePermissions computes the effective permission set for an identity
// holding the given role and custom grants. Blanket roles short-circuit to the
// full set in their scope; custom grants are ignored for them because the
// blanket already covers everything.
func EffectivePermissions(role Role, custom []Permission) Set {
	if IsBlanketRole(role) {
		return NewSet(AllPermissions())
	}

	set := NewSet(DefaultPermissions(role))
	for _, p := range custom {
		set.Add(p)
	}
	return set
}

// IsAuthorized reports whether an identity with the given role and custom
// grants holds the permission. Point query: never returns an error.
func IsAuthorized(role Role, custom []Permission, perm Permission) bool {
	if IsBlanketRole(role) {
		return true
	}
	if NewSet(DefaultPermissions(role)).Has(perm) {
		return true
	}
	for _, p := range custom {
		if p == perm {
			return true
		}
	}
	return false
}

// CompareRole compares the seniority of a against b using the fixed total
// order. Incomparable only when either side is absent from the enumeration.
func CompareRole(a, b Role) Comparison {
	rankA, okA := roleRank[a]
	rankB, okB := roleRank[b]
	if !okA || !okB {
		return Incomparable
	}
	switch {
	case rankA < rankB:
		return MorePrivileged
	case rankA > rankB:
		return LessPrivileged
	default:
		return EqualPrivilege
	}
}

// AtLeastAsPrivileged reports whether a is at least as privileged as b. Used
// for guard checks such as "an actor may not grant a role more senior than
// its own".
func AtLeastAsPrivileged(a, b Role) bool {
	c := CompareRole(a, b)
	return c == MorePrivileged || c == EqualPrivilege
}
