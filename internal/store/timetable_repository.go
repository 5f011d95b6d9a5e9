package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wenqi-dev/timegrid/internal/models"
)

// TimetableRepository manages timetable rows.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const timetableColumns = `id, name, type, week_start, days, segments, created_at, updated_at, deleted_at`

// Create inserts a timetable, stamping id and lifecycle columns.
func (r *TimetableRepository) Create(ctx context.Context, exec sqlx.ExtContext, t *models.Timetable) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.DeletedAt = nil

	const query = `INSERT INTO timetables (id, name, type, week_start, days, segments, created_at, updated_at, deleted_at)
VALUES (:id, :name, :type, :week_start, :days, :segments, :created_at, :updated_at, :deleted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, t); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// GetByID retrieves one timetable row regardless of deletion state.
func (r *TimetableRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE id = ?`
	var t models.Timetable
	if err := sqlx.GetContext(ctx, r.exec(exec), &t, query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListActive returns timetables whose deletion marker is clear.
func (r *TimetableRepository) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE deleted_at IS NULL ORDER BY created_at ASC, id ASC`
	var rows []models.Timetable
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return rows, nil
}

// ListDeleted returns soft-deleted timetables.
func (r *TimetableRepository) ListDeleted(ctx context.Context, exec sqlx.ExtContext) ([]models.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC`
	var rows []models.Timetable
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list deleted timetables: %w", err)
	}
	return rows, nil
}

// Update rewrites the mutable fields of a timetable.
func (r *TimetableRepository) Update(ctx context.Context, exec sqlx.ExtContext, t *models.Timetable) error {
	t.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetables SET name = :name, type = :type, week_start = :week_start, days = :days,
segments = :segments, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, t)
	if err != nil {
		return fmt.Errorf("update timetable: %w", err)
	}
	return requireAffected(res)
}

// SoftDelete marks a timetable deleted; already-deleted rows are left alone.
func (r *TimetableRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error {
	const query = `UPDATE timetables SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt, id)
	if err != nil {
		return fmt.Errorf("soft delete timetable: %w", err)
	}
	return requireAffected(res)
}

// Restore clears the deletion marker.
func (r *TimetableRepository) Restore(ctx context.Context, exec sqlx.ExtContext, id string, restoredAt time.Time) error {
	const query = `UPDATE timetables SET deleted_at = NULL, updated_at = ? WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, restoredAt, id)
	if err != nil {
		return fmt.Errorf("restore timetable: %w", err)
	}
	return requireAffected(res)
}

// PermanentDelete removes the row outright. Irreversible.
func (r *TimetableRepository) PermanentDelete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM timetables WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("permanent delete timetable: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteAllActive marks every active timetable deleted, returning the count.
func (r *TimetableRepository) SoftDeleteAllActive(ctx context.Context, exec sqlx.ExtContext, deletedAt time.Time) (int64, error) {
	const query = `UPDATE timetables SET deleted_at = ?, updated_at = ? WHERE deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt)
	if err != nil {
		return 0, fmt.Errorf("clear timetables: %w", err)
	}
	return res.RowsAffected()
}

// Upsert inserts or overwrites a timetable by id, clearing any deletion
// marker. Used by merge-mode backup restore, where an id collision is the
// mechanism that resurrects a soft-deleted original.
func (r *TimetableRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, t *models.Timetable) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.DeletedAt = nil

	const query = `INSERT INTO timetables (id, name, type, week_start, days, segments, created_at, updated_at, deleted_at)
VALUES (:id, :name, :type, :week_start, :days, :segments, :created_at, :updated_at, NULL)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	type = excluded.type,
	week_start = excluded.week_start,
	days = excluded.days,
	segments = excluded.segments,
	updated_at = excluded.updated_at,
	deleted_at = NULL`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, t); err != nil {
		return fmt.Errorf("upsert timetable: %w", err)
	}
	return nil
}

// requireAffected converts a zero-row update into sql.ErrNoRows so
// services can map it to a not-found failure.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
