// Package identitytest provides a sqlite-backed profile store for tests.
package identitytest

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tasknest/tasknest/pkg/identity"
)

// Schema mirrors the Postgres migrations with sqlite column types.
const Schema = `
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
`

// NewDB opens an in-memory sqlite database with the profile store schema.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewStore opens an in-memory sqlite-backed profile store.
func NewStore(t *testing.T) *identity.PostgresStore {
	t.Helper()
	return identity.NewPostgresStore(NewDB(t))
}
