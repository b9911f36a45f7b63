package claims

import (
	"time"

	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/identity"
)

// Snapshot is the denormalized authorization state for one user. It mirrors
// the claims-bearing fields of the profile store at a particular claims
// version.
type Snapshot struct {
	UserID            string               `json:"userId"`
	Role              authz.Role           `json:"role"`
	AccountType       identity.AccountType `json:"accountType"`
	OrganizationID    *string              `json:"organizationId,omitempty"`
	DepartmentID      *string              `json:"departmentId,omitempty"`
	CustomPermissions []authz.Permission   `json:"customPermissions,omitempty"`
	Flags             identity.Flags       `json:"flags"`
	ClaimsVersion     int64                `json:"claimsVersion"`
	IssuedAt          time.Time            `json:"issuedAt"`
}

// FromIdentity builds the snapshot that mirrors an identity's current
// authorization fields.
func FromIdentity(ident *identity.Identity) *Snapshot {
	var perms []authz.Permission
	if len(ident.CustomPermissions) > 0 {
		perms = make([]authz.Permission, len(ident.CustomPermissions))
		copy(perms, ident.CustomPermissions)
	}
	return &Snapshot{
		UserID:            ident.ID,
		Role:              ident.Role,
		AccountType:       ident.AccountType,
		OrganizationID:    ident.OrganizationID,
		DepartmentID:      ident.DepartmentID,
		CustomPermissions: perms,
		Flags:             ident.Flags,
		ClaimsVersion:     ident.ClaimsVersion,
		IssuedAt:          time.Now().UTC(),
	}
}

// Authorized reports whether the snapshot grants the permission, combining
// role defaults with the snapshot's custom grants.
func (s *Snapshot) Authorized(perm authz.Permission) bool {
	return authz.IsAuthorized(s.Role, s.CustomPermissions, perm)
}

// InOrganization reports whether the snapshot places the user in the given
// organization.
func (s *Snapshot) InOrganization(orgID string) bool {
	return s.OrganizationID != nil && *s.OrganizationID == orgID
}

// InDepartment reports whether the snapshot places the user in the given
// department.
func (s *Snapshot) InDepartment(deptID string) bool {
	return s.DepartmentID != nil && *s.DepartmentID == deptID
}
