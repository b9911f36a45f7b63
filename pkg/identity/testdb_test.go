package identity

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Minimal schema mirroring the Postgres migrations.
	_, err = db.Exec(`
		CREATE TABLE identities (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			account_type TEXT NOT NULL,
			organization_id TEXT,
			department_id TEXT,
			custom_permissions TEXT NOT NULL DEFAULT '[]',
			flag_owner INTEGER NOT NULL DEFAULT 0,
			flag_admin INTEGER NOT NULL DEFAULT 0,
			flag_organization INTEGER NOT NULL DEFAULT 0,
			claims_version INTEGER NOT NULL DEFAULT 0,
			legacy_owner_flag INTEGER NOT NULL DEFAULT 0,
			legacy_admin_flag INTEGER NOT NULL DEFAULT 0,
			legacy_role TEXT,
			migrated INTEGER NOT NULL DEFAULT 0,
			migrated_at TIMESTAMP,
			migrated_by TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);

		CREATE TABLE organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_by TEXT NOT NULL,
			migrated INTEGER NOT NULL DEFAULT 0,
			migrated_at TIMESTAMP,
			migrated_by TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);

		CREATE TABLE memberships (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			department_id TEXT,
			joined_at TIMESTAMP,
			legacy_owner_flag INTEGER NOT NULL DEFAULT 0,
			legacy_admin_flag INTEGER NOT NULL DEFAULT 0,
			legacy_role TEXT,
			migrated INTEGER NOT NULL DEFAULT 0,
			migrated_at TIMESTAMP,
			migrated_by TEXT,
			UNIQUE(organization_id, user_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
