package migration

import (
	"strings"

	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/identity"
)

// Legacy holds the pre-migration role representation of one record.
type Legacy struct {
	OwnerFlag bool
	AdminFlag bool
	Role      string
}

// Legacy role strings that map directly onto the unified enumeration when
// the record sits in an organization context.
var legacyOrgRoles = map[string]authz.Role{
	"owner":      authz.RoleOrgOwner,
	"admin":      authz.RoleOrgAdmin,
	"engineer":   authz.RoleOrgEngineer,
	"supervisor": authz.RoleOrgSupervisor,
	"technician": authz.RoleOrgTechnician,
	"assistant":  authz.RoleOrgAssistant,
}

var legacySystemRoles = map[string]authz.Role{
	"owner": authz.RoleSystemOwner,
	"admin": authz.RoleSystemAdmin,
}

// UnifiedRole derives the unified role for a legacy record. Precedence:
// owner flag, admin flag, recognized role string, scope default. An owner
// flag combined with an organization account resolves to OrgOwner; an
// owner flag without organization context resolves to SystemOwner.
func UnifiedRole(legacy Legacy, accountType identity.AccountType) authz.Role {
	inOrg := accountType == identity.AccountOrganization

	if legacy.OwnerFlag {
		if inOrg {
			return authz.RoleOrgOwner
		}
		return authz.RoleSystemOwner
	}
	if legacy.AdminFlag {
		if inOrg {
			return authz.RoleOrgAdmin
		}
		return authz.RoleSystemAdmin
	}

	name := strings.ToLower(strings.TrimSpace(legacy.Role))
	if inOrg {
		if role, ok := legacyOrgRoles[name]; ok {
			return role
		}
		return authz.RoleOrgAssistant
	}
	if role, ok := legacySystemRoles[name]; ok {
		return role
	}
	return authz.RoleIndependent
}

// membershipLegacy extracts the legacy fields from a membership row.
func membershipLegacy(m *identity.Membership) Legacy {
	return Legacy{OwnerFlag: m.LegacyOwnerFlag, AdminFlag: m.LegacyAdminFlag, Role: m.LegacyRole}
}

// identityLegacy extracts the legacy fields from an identity document.
func identityLegacy(ident *identity.Identity) Legacy {
	return Legacy{OwnerFlag: ident.LegacyOwnerFlag, AdminFlag: ident.LegacyAdminFlag, Role: ident.LegacyRole}
}
