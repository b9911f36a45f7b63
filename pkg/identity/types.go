package identity

import (
	"time"

	"github.com/tasknest/tasknest/pkg/authz"
)

// AccountType represents the tenancy mode of an identity
type AccountType string

const (
	AccountIndividual   AccountType = "individual"
	AccountOrganization AccountType = "organization"
)

// Flags are the boolean claims derived from a role. They are always
// recomputed from the role alone on write, never copied forward from a
// previous claims object.
type Flags struct {
	Owner        bool `json:"owner"`
	Admin        bool `json:"admin"`
	Organization bool `json:"organization"`
}

// FlagsForRole derives the boolean claim flags for a role.
func FlagsForRole(role authz.Role) Flags {
	return Flags{
		Owner:        role == authz.RoleSystemOwner || role == authz.RoleOrgOwner,
		Admin:        authz.IsBlanketRole(role),
		Organization: authz.RoleScope(role) == authz.ScopeOrganization,
	}
}

// Identity is one authenticated actor's authoritative profile record.
type Identity struct {
	ID                string             `json:"id"`
	Email             string             `json:"email,omitempty"`
	DisplayName       string             `json:"display_name,omitempty"`
	Role              authz.Role         `json:"role"`
	AccountType       AccountType        `json:"account_type"`
	OrganizationID    *string            `json:"organization_id,omitempty"`
	DepartmentID      *string            `json:"department_id,omitempty"`
	CustomPermissions []authz.Permission `json:"custom_permissions,omitempty"`
	Flags             Flags              `json:"flags"`
	ClaimsVersion     int64              `json:"claims_version"`

	// Legacy role representation, input to the migration engine.
	LegacyOwnerFlag bool   `json:"legacy_owner_flag,omitempty"`
	LegacyAdminFlag bool   `json:"legacy_admin_flag,omitempty"`
	LegacyRole      string `json:"legacy_role,omitempty"`

	// Migration audit record.
	Migrated   bool       `json:"migrated"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
	MigratedBy string     `json:"migrated_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organization is a tenant with organization-scope members.
type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"` // recorded creator; bootstrap exception for a missing owner Membership

	Migrated   bool       `json:"migrated"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
	MigratedBy string     `json:"migrated_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership is one identity's participation in one organization. An
// organization-scope identity's effective role is defined by its current
// Membership, not by any cached claims copy.
type Membership struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	Role           authz.Role `json:"role"`
	DepartmentID   *string    `json:"department_id,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`

	// Legacy role representation, input to the migration engine.
	LegacyOwnerFlag bool   `json:"legacy_owner_flag,omitempty"`
	LegacyAdminFlag bool   `json:"legacy_admin_flag,omitempty"`
	LegacyRole      string `json:"legacy_role,omitempty"`

	// Migration audit record.
	Migrated   bool       `json:"migrated"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
	MigratedBy string     `json:"migrated_by,omitempty"`
}
