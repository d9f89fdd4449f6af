package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentityRepository defines the interface for identity persistence.
type IdentityRepository interface {
	Create(ctx context.Context, identity *Identity) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	List(ctx context.Context) ([]Identity, error)
	Update(ctx context.Context, identity *Identity) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	ClearInvitation(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	Permissions(ctx context.Context, identityID string) (PermissionSet, error)
	UpsertPermission(ctx context.Context, identityID string, module Module, triple Triple) error
	InsertPermissionIfAbsent(ctx context.Context, identityID string, module Module, triple Triple) (bool, error)
}

// SQLiteIdentityRepository implements IdentityRepository using SQLite.
type SQLiteIdentityRepository struct {
	db *sql.DB
}

// NewIdentityRepository creates a new SQLite-backed identity repository.
func NewIdentityRepository(db *sql.DB) *SQLiteIdentityRepository {
	return &SQLiteIdentityRepository{db: db}
}

const identityColumns = "id, email, first_name, last_name, phone, password_hash, role, is_active, invited_at, created_by, created_at, updated_at"

// Create inserts a new identity. The ID is generated if empty and the email
// is normalised before storage.
func (r *SQLiteIdentityRepository) Create(ctx context.Context, identity *Identity) error {
	if identity.ID == "" {
		identity.ID = "usr-" + uuid.NewString()[:8]
	}
	identity.Email = NormaliseEmail(identity.Email)

	now := time.Now().UTC().Format(time.RFC3339)
	identity.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	identity.UpdatedAt = identity.CreatedAt

	var invitedAt sql.NullString
	if identity.InvitedAt != nil {
		invitedAt = sql.NullString{String: identity.InvitedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.Email, identity.FirstName, identity.LastName,
		nullString(identity.Phone), identity.PasswordHash, string(identity.Role),
		boolToInt(identity.IsActive), invitedAt, nullString(identity.CreatedBy), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating identity: %w", err)
	}

	return nil
}

// GetByID retrieves an identity by its unique ID.
func (r *SQLiteIdentityRepository) GetByID(ctx context.Context, id string) (*Identity, error) {
	return r.getIdentity(ctx, "SELECT "+identityColumns+" FROM identities WHERE id = ?", id)
}

// GetByEmail retrieves an identity by login email. Lookup is by the
// normalised form.
func (r *SQLiteIdentityRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.getIdentity(ctx, "SELECT "+identityColumns+" FROM identities WHERE email = ?", NormaliseEmail(email))
}

// List returns all identities ordered by creation date.
func (r *SQLiteIdentityRepository) List(ctx context.Context) ([]Identity, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		i, err := scanIdentityFrom(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}

	if identities == nil {
		identities = []Identity{}
	}
	return identities, nil
}

// Update modifies an identity's mutable fields (names, phone, email, role,
// is_active). Password and invitation state have dedicated operations.
func (r *SQLiteIdentityRepository) Update(ctx context.Context, identity *Identity) error {
	identity.Email = NormaliseEmail(identity.Email)
	now := time.Now().UTC().Format(time.RFC3339)
	identity.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET email = ?, first_name = ?, last_name = ?, phone = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		identity.Email, identity.FirstName, identity.LastName, nullString(identity.Phone),
		string(identity.Role), boolToInt(identity.IsActive), now, identity.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("updating identity: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// UpdatePassword changes an identity's password hash.
func (r *SQLiteIdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// SetActive flips an identity's activation state. Deactivation takes effect
// on the next guarded request regardless of outstanding tokens.
func (r *SQLiteIdentityRepository) SetActive(ctx context.Context, id string, active bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), now, id,
	)
	if err != nil {
		return fmt.Errorf("setting active state: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// ClearInvitation marks a pending invitation as consumed and activates the
// account in the same statement.
func (r *SQLiteIdentityRepository) ClearInvitation(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET invited_at = NULL, is_active = 1, updated_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("clearing invitation: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// Delete removes an identity and, via cascade, its permission rows.
func (r *SQLiteIdentityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM identities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// Count returns the total number of identities.
func (r *SQLiteIdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting identities: %w", err)
	}
	return count, nil
}

// Permissions returns the stored per-module rows for an identity. The
// result covers only modules with a stored row; callers combine it with the
// role defaults via Effective. Rows for modules no longer in the closed set
// are skipped.
func (r *SQLiteIdentityRepository) Permissions(ctx context.Context, identityID string) (PermissionSet, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT module, can_view, can_edit, can_delete FROM identity_permissions WHERE identity_id = ?",
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading permissions: %w", err)
	}
	defer rows.Close()

	set := make(PermissionSet)
	for rows.Next() {
		var module string
		var view, edit, del int
		if err := rows.Scan(&module, &view, &edit, &del); err != nil {
			return nil, fmt.Errorf("scanning permission row: %w", err)
		}
		m := Module(module)
		if !IsValidModule(m) {
			continue
		}
		set[m] = Triple{View: view != 0, Edit: edit != 0, Delete: del != 0}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}

	return set, nil
}

// UpsertPermission writes one module's triple for an identity, replacing
// any existing row. Last writer wins at module granularity.
func (r *SQLiteIdentityRepository) UpsertPermission(ctx context.Context, identityID string, module Module, triple Triple) error {
	if !IsValidModule(module) {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identity_permissions (identity_id, module, can_view, can_edit, can_delete, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity_id, module) DO UPDATE SET
		   can_view = excluded.can_view,
		   can_edit = excluded.can_edit,
		   can_delete = excluded.can_delete,
		   updated_at = excluded.updated_at`,
		identityID, string(module), boolToInt(triple.View), boolToInt(triple.Edit), boolToInt(triple.Delete), now,
	)
	if err != nil {
		return fmt.Errorf("upserting permission: %w", err)
	}
	return nil
}

// InsertPermissionIfAbsent writes one module's triple only if no row exists
// yet. Returns true if a row was inserted. Existing rows, including ones
// written concurrently, are left untouched, which makes the backfill
// idempotent and safe to run from multiple processes.
func (r *SQLiteIdentityRepository) InsertPermissionIfAbsent(ctx context.Context, identityID string, module Module, triple Triple) (bool, error) {
	if !IsValidModule(module) {
		return false, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO identity_permissions (identity_id, module, can_view, can_edit, can_delete, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity_id, module) DO NOTHING`,
		identityID, string(module), boolToInt(triple.View), boolToInt(triple.Edit), boolToInt(triple.Delete), now,
	)
	if err != nil {
		return false, fmt.Errorf("inserting permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows > 0, nil
}

// getIdentity executes a query and scans a single identity result.
func (r *SQLiteIdentityRepository) getIdentity(ctx context.Context, query string, args ...any) (*Identity, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	return scanIdentityFrom(row)
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanIdentityFrom scans an identity from any scanner (Row or Rows).
func scanIdentityFrom(s scanner) (*Identity, error) {
	var i Identity
	var phone, invitedAt, createdBy sql.NullString
	var role string
	var isActive int
	var createdAt, updatedAt string

	err := s.Scan(&i.ID, &i.Email, &i.FirstName, &i.LastName, &phone,
		&i.PasswordHash, &role, &isActive, &invitedAt, &createdBy,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("scanning identity: %w", err)
	}

	i.Role = Role(role)
	i.IsActive = isActive != 0
	if phone.Valid {
		i.Phone = phone.String
	}
	if createdBy.Valid {
		i.CreatedBy = createdBy.String
	}
	if invitedAt.Valid {
		t, err := time.Parse(time.RFC3339, invitedAt.String)
		if err == nil {
			i.InvitedAt = &t
		}
	}

	i.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	i.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &i, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
