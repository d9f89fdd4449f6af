package workorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter controls which work orders to return from List.
type Filter struct {
	Status     Status // optional: filter by status
	AssigneeID string // optional: filter by assigned identity
	CreatedBy  string // optional: filter by creator
}

// Repository defines the interface for work order persistence.
type Repository interface {
	Create(ctx context.Context, wo *WorkOrder) error
	GetByID(ctx context.Context, id string) (*WorkOrder, error)
	List(ctx context.Context, filter Filter) ([]WorkOrder, error)
	Update(ctx context.Context, wo *WorkOrder) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed work order repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const workOrderColumns = "id, title, description, status, priority, equipment, assignee_id, created_by, created_at, updated_at"

// Create inserts a new work order. The ID is generated if empty; status and
// priority default to open/normal.
func (r *SQLiteRepository) Create(ctx context.Context, wo *WorkOrder) error {
	if wo.ID == "" {
		wo.ID = "wo-" + uuid.NewString()[:8]
	}
	if wo.Status == "" {
		wo.Status = StatusOpen
	}
	if wo.Priority == "" {
		wo.Priority = PriorityNormal
	}
	if !IsValidStatus(wo.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, wo.Status)
	}
	if !IsValidPriority(wo.Priority) {
		return fmt.Errorf("%w: %s", ErrInvalidPriority, wo.Priority)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	wo.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	wo.UpdatedAt = wo.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_orders (`+workOrderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wo.ID, wo.Title, nullString(wo.Description), string(wo.Status), string(wo.Priority),
		nullString(wo.Equipment), nullString(wo.Assignee), wo.CreatedBy, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating work order: %w", err)
	}
	return nil
}

// GetByID retrieves a work order by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*WorkOrder, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+workOrderColumns+" FROM work_orders WHERE id = ?", id)
	return scanWorkOrderFrom(row)
}

// List returns work orders matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]WorkOrder, error) {
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssigneeID != "" {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT %s FROM work_orders %s ORDER BY created_at DESC", workOrderColumns, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing work orders: %w", err)
	}
	defer rows.Close()

	var orders []WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrderFrom(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *wo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work orders: %w", err)
	}

	if orders == nil {
		orders = []WorkOrder{}
	}
	return orders, nil
}

// Update modifies a work order's mutable fields. The creator is immutable:
// created_by is deliberately absent from the statement.
func (r *SQLiteRepository) Update(ctx context.Context, wo *WorkOrder) error {
	if !IsValidStatus(wo.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, wo.Status)
	}
	if !IsValidPriority(wo.Priority) {
		return fmt.Errorf("%w: %s", ErrInvalidPriority, wo.Priority)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	wo.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE work_orders SET title = ?, description = ?, status = ?, priority = ?, equipment = ?, assignee_id = ?, updated_at = ? WHERE id = ?`,
		wo.Title, nullString(wo.Description), string(wo.Status), string(wo.Priority),
		nullString(wo.Equipment), nullString(wo.Assignee), now, wo.ID,
	)
	if err != nil {
		return fmt.Errorf("updating work order: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus changes only the status column. This is the narrow write
// used for assignee-driven transitions, where status is the only field the
// caller is allowed to touch.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !IsValidStatus(status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		`UPDATE work_orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now, id,
	)
	if err != nil {
		return fmt.Errorf("updating work order status: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a work order by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM work_orders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting work order: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkOrderFrom(s scanner) (*WorkOrder, error) {
	var wo WorkOrder
	var description, equipment, assignee sql.NullString
	var status, priority string
	var createdAt, updatedAt string

	err := s.Scan(&wo.ID, &wo.Title, &description, &status, &priority,
		&equipment, &assignee, &wo.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning work order: %w", err)
	}

	wo.Status = Status(status)
	wo.Priority = Priority(priority)
	if description.Valid {
		wo.Description = description.String
	}
	if equipment.Valid {
		wo.Equipment = equipment.String
	}
	if assignee.Valid {
		wo.Assignee = assignee.String
	}

	wo.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	wo.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &wo, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
