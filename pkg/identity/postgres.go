package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tasknest/tasknest/pkg/apperr"
	"github.com/tasknest/tasknest/pkg/authz"
)

// PostgresStore implements Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Profile Store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `id, email, display_name, role, account_type, organization_id, department_id,
	       custom_permissions, flag_owner, flag_admin, flag_organization, claims_version,
	       legacy_owner_flag, legacy_admin_flag, legacy_role,
	       migrated, migrated_at, migrated_by, created_at, updated_at`

// GetIdentity reads one identity document.
func (s *PostgresStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE id = $1
	`
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("identity %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "get identity %s", id)
	}
	return ident, nil
}

// CreateIdentity inserts a new identity record.
func (s *PostgresStore) CreateIdentity(ctx context.Context, ident *Identity) error {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	permsJSON, err := json.Marshal(ident.CustomPermissions)
	if err != nil {
		return apperr.Internal(err, "marshal custom permissions")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO identities (id, email, display_name, role, account_type, organization_id, department_id,
		                        custom_permissions, flag_owner, flag_admin, flag_organization, claims_version,
		                        legacy_owner_flag, legacy_admin_flag, legacy_role,
		                        migrated, migrated_at, migrated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err = s.db.ExecContext(ctx, query,
		ident.ID, ident.Email, ident.DisplayName, ident.Role, ident.AccountType,
		ident.OrganizationID, ident.DepartmentID, string(permsJSON),
		ident.Flags.Owner, ident.Flags.Admin, ident.Flags.Organization, ident.ClaimsVersion,
		ident.LegacyOwnerFlag, ident.LegacyAdminFlag, ident.LegacyRole,
		ident.Migrated, ident.MigratedAt, ident.MigratedBy, now, now,
	)
	if err != nil {
		return apperr.Internal(err, "create identity %s", ident.ID)
	}
	ident.CreatedAt = now
	ident.UpdatedAt = now
	return nil
}

// SaveAuthz overwrites the claims-bearing fields of an identity in one atomic
// write and bumps the claims version.
func (s *PostgresStore) SaveAuthz(ctx context.Context, ident *Identity) (int64, error) {
	permsJSON, err := json.Marshal(ident.CustomPermissions)
	if err != nil {
		return 0, apperr.Internal(err, "marshal custom permissions")
	}

	query := `
		UPDATE identities
		SET role = $1, account_type = $2, organization_id = $3, department_id = $4,
		    custom_permissions = $5, flag_owner = $6, flag_admin = $7, flag_organization = $8,
		    claims_version = claims_version + 1, updated_at = $9
		WHERE id = $10
		RETURNING claims_version
	`
	var version int64
	err = s.db.QueryRowContext(ctx, query,
		ident.Role, ident.AccountType, ident.OrganizationID, ident.DepartmentID,
		string(permsJSON), ident.Flags.Owner, ident.Flags.Admin, ident.Flags.Organization,
		time.Now().UTC(), ident.ID,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("identity %s not found", ident.ID)
	}
	if err != nil {
		return 0, apperr.Internal(err, "save authz fields for identity %s", ident.ID)
	}
	ident.ClaimsVersion = version
	return version, nil
}

// ListIndependentIdentities returns all individual-account identities.
func (s *PostgresStore) ListIndependentIdentities(ctx context.Context) ([]*Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE account_type = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, AccountIndividual)
	if err != nil {
		return nil, apperr.Internal(err, "list independent identities")
	}
	defer rows.Close()

	var out []*Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, apperr.Internal(err, "scan identity")
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "list independent identities")
	}
	return out, nil
}

// MarkIdentityMigrated sets the identity's migration audit record.
func (s *PostgresStore) MarkIdentityMigrated(ctx context.Context, id, migratedBy string) error {
	query := `UPDATE identities SET migrated = $1, migrated_at = $2, migrated_by = $3 WHERE id = $4`
	result, err := s.db.ExecContext(ctx, query, true, time.Now().UTC(), migratedBy, id)
	if err != nil {
		return apperr.Internal(err, "mark identity %s migrated", id)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("identity %s not found", id)
	}
	return nil
}

// GetOrganization reads one organization document.
func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	query := `
		SELECT id, name, created_by, migrated, migrated_at, migrated_by, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization %s not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "get organization %s", id)
	}
	return org, nil
}

// CreateOrganization inserts a new organization record.
func (s *PostgresStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO organizations (id, name, created_by, migrated, migrated_at, migrated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		org.ID, org.Name, org.CreatedBy, org.Migrated, org.MigratedAt, org.MigratedBy, now, now,
	)
	if err != nil {
		return apperr.Internal(err, "create organization %s", org.ID)
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// ListOrganizations returns all organizations.
func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	query := `
		SELECT id, name, created_by, migrated, migrated_at, migrated_by, created_at, updated_at
		FROM organizations
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Internal(err, "list organizations")
	}
	defer rows.Close()

	var out []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, apperr.Internal(err, "scan organization")
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "list organizations")
	}
	return out, nil
}

// MarkOrganizationMigrated sets the organization's migration audit record.
func (s *PostgresStore) MarkOrganizationMigrated(ctx context.Context, id, migratedBy string) error {
	query := `UPDATE organizations SET migrated = $1, migrated_at = $2, migrated_by = $3 WHERE id = $4`
	result, err := s.db.ExecContext(ctx, query, true, time.Now().UTC(), migratedBy, id)
	if err != nil {
		return apperr.Internal(err, "mark organization %s migrated", id)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("organization %s not found", id)
	}
	return nil
}

const membershipColumns = `id, organization_id, user_id, role, department_id, joined_at,
	       legacy_owner_flag, legacy_admin_flag, legacy_role, migrated, migrated_at, migrated_by`

// GetMembership reads one identity's membership in one organization.
func (s *PostgresStore) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE organization_id = $1 AND user_id = $2
	`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, orgID, userID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	if err != nil {
		return nil, apperr.Internal(err, "get membership %s/%s", orgID, userID)
	}
	return m, nil
}

// CreateMembership inserts a membership row.
func (s *PostgresStore) CreateMembership(ctx context.Context, m *Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO memberships (id, organization_id, user_id, role, department_id, joined_at,
		                         legacy_owner_flag, legacy_admin_flag, legacy_role, migrated, migrated_at, migrated_by)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE NOT EXISTS (
			SELECT 1 FROM memberships WHERE organization_id = $2 AND user_id = $3
		)
	`
	result, err := s.db.ExecContext(ctx, query,
		m.ID, m.OrganizationID, m.UserID, m.Role, m.DepartmentID, m.JoinedAt,
		m.LegacyOwnerFlag, m.LegacyAdminFlag, m.LegacyRole, m.Migrated, m.MigratedAt, m.MigratedBy,
	)
	if err != nil {
		return apperr.Internal(err, "create membership %s/%s", m.OrganizationID, m.UserID)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindAlreadyExists, "user %s is already a member of organization %s", m.UserID, m.OrganizationID)
	}
	return nil
}

// ListMemberships returns all memberships under an organization.
func (s *PostgresStore) ListMemberships(ctx context.Context, orgID string) ([]*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE organization_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, apperr.Internal(err, "list memberships for organization %s", orgID)
	}
	defer rows.Close()

	var out []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, apperr.Internal(err, "scan membership")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err, "list memberships for organization %s", orgID)
	}
	return out, nil
}

// UpdateMembershipRole overwrites the membership's role.
func (s *PostgresStore) UpdateMembershipRole(ctx context.Context, orgID, userID string, role authz.Role) error {
	query := `UPDATE memberships SET role = $1 WHERE organization_id = $2 AND user_id = $3`
	result, err := s.db.ExecContext(ctx, query, role, orgID, userID)
	if err != nil {
		return apperr.Internal(err, "update membership role %s/%s", orgID, userID)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	return nil
}

// DeleteMembership removes a membership row.
func (s *PostgresStore) DeleteMembership(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return apperr.Internal(err, "delete membership %s/%s", orgID, userID)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	return nil
}

// MarkMembershipMigrated sets the membership's migration audit record.
func (s *PostgresStore) MarkMembershipMigrated(ctx context.Context, orgID, userID, migratedBy string) error {
	query := `UPDATE memberships SET migrated = $1, migrated_at = $2, migrated_by = $3 WHERE organization_id = $4 AND user_id = $5`
	result, err := s.db.ExecContext(ctx, query, true, time.Now().UTC(), migratedBy, orgID, userID)
	if err != nil {
		return apperr.Internal(err, "mark membership %s/%s migrated", orgID, userID)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no membership for user %s in organization %s", userID, orgID)
	}
	return nil
}

// CountOwners returns how many members of the organization hold org:owner.
func (s *PostgresStore) CountOwners(ctx context.Context, orgID string) (int, error) {
	query := `SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, orgID, authz.RoleOrgOwner).Scan(&count); err != nil {
		return 0, apperr.Internal(err, "count owners for organization %s", orgID)
	}
	return count, nil
}

// scanIdentity scans an identity from a database row
func scanIdentity(scanner interface {
	Scan(dest ...interface{}) error
}) (*Identity, error) {
	var ident Identity
	var permsJSON string
	var orgID, deptID, legacyRole, migratedBy sql.NullString
	var migratedAt sql.NullTime

	err := scanner.Scan(
		&ident.ID, &ident.Email, &ident.DisplayName, &ident.Role, &ident.AccountType,
		&orgID, &deptID, &permsJSON,
		&ident.Flags.Owner, &ident.Flags.Admin, &ident.Flags.Organization, &ident.ClaimsVersion,
		&ident.LegacyOwnerFlag, &ident.LegacyAdminFlag, &legacyRole,
		&ident.Migrated, &migratedAt, &migratedBy, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		v := orgID.String
		ident.OrganizationID = &v
	}
	if deptID.Valid {
		v := deptID.String
		ident.DepartmentID = &v
	}
	if legacyRole.Valid {
		ident.LegacyRole = legacyRole.String
	}
	if migratedAt.Valid {
		t := migratedAt.Time
		ident.MigratedAt = &t
	}
	if migratedBy.Valid {
		ident.MigratedBy = migratedBy.String
	}

	if permsJSON != "" && permsJSON != "null" {
		if err := json.Unmarshal([]byte(permsJSON), &ident.CustomPermissions); err != nil {
			ident.CustomPermissions = nil
		}
	}

	return &ident, nil
}

// scanOrganization scans an organization from a database row
func scanOrganization(scanner interface {
	Scan(dest ...interface{}) error
}) (*Organization, error) {
	var org Organization
	var migratedBy sql.NullString
	var migratedAt sql.NullTime

	err := scanner.Scan(
		&org.ID, &org.Name, &org.CreatedBy,
		&org.Migrated, &migratedAt, &migratedBy, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if migratedAt.Valid {
		t := migratedAt.Time
		org.MigratedAt = &t
	}
	if migratedBy.Valid {
		org.MigratedBy = migratedBy.String
	}
	return &org, nil
}

// scanMembership scans a membership from a database row
func scanMembership(scanner interface {
	Scan(dest ...interface{}) error
}) (*Membership, error) {
	var m Membership
	var deptID, legacyRole, migratedBy sql.NullString
	var migratedAt sql.NullTime

	err := scanner.Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &deptID, &m.JoinedAt,
		&m.LegacyOwnerFlag, &m.LegacyAdminFlag, &legacyRole,
		&m.Migrated, &migratedAt, &migratedBy,
	)
	if err != nil {
		return nil, err
	}

	if deptID.Valid {
		v := deptID.String
		m.DepartmentID = &v
	}
	if legacyRole.Valid {
		m.LegacyRole = legacyRole.String
	}
	if migratedAt.Valid {
		t := migratedAt.Time
		m.MigratedAt = &t
	}
	if migratedBy.Valid {
		m.MigratedBy = migratedBy.String
	}
	return &m, nil
}
