package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the Profile Store schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create identities table",
			SQL: `
				CREATE TABLE IF NOT EXISTS identities (
					id VARCHAR(64) PRIMARY KEY,
					email VARCHAR(255) NOT NULL DEFAULT '',
					display_name VARCHAR(255) NOT NULL DEFAULT '',
					role VARCHAR(50) NOT NULL,
					account_type VARCHAR(20) NOT NULL,
					organization_id VARCHAR(64),
					department_id VARCHAR(64),
					custom_permissions JSONB NOT NULL DEFAULT '[]',
					flag_owner BOOLEAN NOT NULL DEFAULT FALSE,
					flag_admin BOOLEAN NOT NULL DEFAULT FALSE,
					flag_organization BOOLEAN NOT NULL DEFAULT FALSE,
					claims_version BIGINT NOT NULL DEFAULT 0,
					legacy_owner_flag BOOLEAN NOT NULL DEFAULT FALSE,
					legacy_admin_flag BOOLEAN NOT NULL DEFAULT FALSE,
					legacy_role VARCHAR(100),
					migrated BOOLEAN NOT NULL DEFAULT FALSE,
					migrated_at TIMESTAMP,
					migrated_by VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_identities_account_type ON identities(account_type);
				CREATE INDEX idx_identities_organization_id ON identities(organization_id);
				CREATE INDEX idx_identities_migrated ON identities(migrated);
			`,
		},
		{
			Version:     2,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					created_by VARCHAR(64) NOT NULL,
					migrated BOOLEAN NOT NULL DEFAULT FALSE,
					migrated_at TIMESTAMP,
					migrated_by VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_created_by ON organizations(created_by);
				CREATE INDEX idx_organizations_migrated ON organizations(migrated);
			`,
		},
		{
			Version:     3,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id VARCHAR(64) PRIMARY KEY,
					organization_id VARCHAR(64) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id VARCHAR(64) NOT NULL,
					role VARCHAR(50) NOT NULL,
					department_id VARCHAR(64),
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					legacy_owner_flag BOOLEAN NOT NULL DEFAULT FALSE,
					legacy_admin_flag BOOLEAN NOT NULL DEFAULT FALSE,
					legacy_role VARCHAR(100),
					migrated BOOLEAN NOT NULL DEFAULT FALSE,
					migrated_at TIMESTAMP,
					migrated_by VARCHAR(64),
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX idx_memberships_organization_id ON memberships(organization_id);
				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
				CREATE INDEX idx_memberships_role ON memberships(role);
			`,
		},
	}
}

// RunMigrations executes all pending schema migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identity_schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM identity_schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identity_schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
