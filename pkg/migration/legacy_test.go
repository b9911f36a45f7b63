package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/identity"
)

func TestUnifiedRolePrecedence(t *testing.T) {
	tests := []struct {
		name        string
		legacy      Legacy
		accountType identity.AccountType
		expected    authz.Role
	}{
		// Owner flag beats everything; scope decides which owner.
		{"owner flag in organization", Legacy{OwnerFlag: true}, identity.AccountOrganization, authz.RoleOrgOwner},
		{"owner flag without organization", Legacy{OwnerFlag: true}, identity.AccountIndividual, authz.RoleSystemOwner},
		{"owner flag beats admin flag", Legacy{OwnerFlag: true, AdminFlag: true}, identity.AccountOrganization, authz.RoleOrgOwner},
		{"owner flag beats role string", Legacy{OwnerFlag: true, Role: "assistant"}, identity.AccountOrganization, authz.RoleOrgOwner},

		// Admin flag beats the role string.
		{"admin flag in organization", Legacy{AdminFlag: true}, identity.AccountOrganization, authz.RoleOrgAdmin},
		{"admin flag without organization", Legacy{AdminFlag: true}, identity.AccountIndividual, authz.RoleSystemAdmin},
		{"admin flag beats role string", Legacy{AdminFlag: true, Role: "technician"}, identity.AccountOrganization, authz.RoleOrgAdmin},

		// Recognized role strings.
		{"engineer string", Legacy{Role: "engineer"}, identity.AccountOrganization, authz.RoleOrgEngineer},
		{"supervisor string", Legacy{Role: "supervisor"}, identity.AccountOrganization, authz.RoleOrgSupervisor},
		{"technician string", Legacy{Role: "Technician"}, identity.AccountOrganization, authz.RoleOrgTechnician},
		{"owner string in organization", Legacy{Role: "owner"}, identity.AccountOrganization, authz.RoleOrgOwner},
		{"admin string without organization", Legacy{Role: "admin"}, identity.AccountIndividual, authz.RoleSystemAdmin},

		// Unrecognized strings fall to the scope default.
		{"user string in organization", Legacy{Role: "user"}, identity.AccountOrganization, authz.RoleOrgAssistant},
		{"user string individual", Legacy{Role: "user"}, identity.AccountIndividual, authz.RoleIndependent},
		{"empty record in organization", Legacy{}, identity.AccountOrganization, authz.RoleOrgAssistant},
		{"empty record individual", Legacy{}, identity.AccountIndividual, authz.RoleIndependent},
		{"whitespace role string", Legacy{Role: "  supervisor  "}, identity.AccountOrganization, authz.RoleOrgSupervisor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnifiedRole(tt.legacy, tt.accountType))
		})
	}
}
