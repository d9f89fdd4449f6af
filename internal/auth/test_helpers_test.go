package auth

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testHasher uses the minimum bcrypt cost to keep the suite fast.
var testHasher = NewHasher(4)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE identities (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'VISUALISEUR',
			is_active INTEGER NOT NULL DEFAULT 1,
			invited_at TEXT,
			created_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (created_by) REFERENCES identities(id) ON DELETE SET NULL
		) STRICT;

		CREATE INDEX idx_identities_role ON identities(role);

		CREATE TABLE identity_permissions (
			identity_id TEXT NOT NULL,
			module TEXT NOT NULL,
			can_view INTEGER NOT NULL DEFAULT 0,
			can_edit INTEGER NOT NULL DEFAULT 0,
			can_delete INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (identity_id, module),
			FOREIGN KEY (identity_id) REFERENCES identities(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_identity_permissions_module ON identity_permissions(module);

		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			actor_id TEXT,
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying auth migration: %v", err)
	}

	return db
}

// seedTestIdentity inserts an active test identity and returns it.
func seedTestIdentity(t *testing.T, db *sql.DB, email string, role Role) *Identity {
	t.Helper()

	hash, err := testHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewIdentityRepository(db)
	identity := &Identity{
		Email:        email,
		FirstName:    "Test",
		LastName:     "Identity",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(t.Context(), identity); err != nil {
		t.Fatalf("creating test identity %s: %v", email, err)
	}
	return identity
}
