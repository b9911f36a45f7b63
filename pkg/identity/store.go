package identity

import (
	"context"

	"github.com/tasknest/tasknest/pkg/authz"
)

// Store is the Profile Store: per-document reads and atomic per-document
// writes over identities, organizations, and memberships. Implementations
// return apperr kinds: NotFound for absent documents, Internal for store
// faults.
type Store interface {
	// GetIdentity reads one identity document.
	GetIdentity(ctx context.Context, id string) (*Identity, error)

	// CreateIdentity inserts a new identity record. First-authentication
	// defaults (independent role, individual account) are the caller's
	// responsibility; the store writes what it is given.
	CreateIdentity(ctx context.Context, ident *Identity) error

	// SaveAuthz overwrites the claims-bearing fields of an identity (role,
	// account type, tenancy, custom permissions, derived flags) in one atomic
	// write, bumps the document's claims version, and returns the new
	// version. Derived flags are taken from ident.Flags; callers recompute
	// them from the role before the write.
	SaveAuthz(ctx context.Context, ident *Identity) (int64, error)

	// ListIndependentIdentities returns all individual-account identities.
	ListIndependentIdentities(ctx context.Context) ([]*Identity, error)

	// MarkIdentityMigrated sets the identity's migration audit record.
	MarkIdentityMigrated(ctx context.Context, id, migratedBy string) error

	// GetOrganization reads one organization document.
	GetOrganization(ctx context.Context, id string) (*Organization, error)

	// CreateOrganization inserts a new organization record.
	CreateOrganization(ctx context.Context, org *Organization) error

	// ListOrganizations returns all organizations.
	ListOrganizations(ctx context.Context) ([]*Organization, error)

	// MarkOrganizationMigrated sets the organization's migration audit record.
	MarkOrganizationMigrated(ctx context.Context, id, migratedBy string) error

	// GetMembership reads one identity's membership in one organization.
	GetMembership(ctx context.Context, orgID, userID string) (*Membership, error)

	// CreateMembership inserts a membership row. At most one membership per
	// (organization, user); a duplicate insert returns AlreadyExists.
	CreateMembership(ctx context.Context, m *Membership) error

	// ListMemberships returns all memberships under an organization.
	ListMemberships(ctx context.Context, orgID string) ([]*Membership, error)

	// DeleteMembership removes a membership row. NotFound if absent.
	DeleteMembership(ctx context.Context, orgID, userID string) error

	// UpdateMembershipRole overwrites the membership's role.
	UpdateMembershipRole(ctx context.Context, orgID, userID string, role authz.Role) error

	// MarkMembershipMigrated sets the membership's migration audit record.
	MarkMembershipMigrated(ctx context.Context, orgID, userID, migratedBy string) error

	// CountOwners returns how many members of the organization hold org:owner.
	// Used for the sole-remaining-owner precondition.
	CountOwners(ctx context.Context, orgID string) (int, error)
}
