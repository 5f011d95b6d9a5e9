package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wenqi-dev/timegrid/internal/models"
)

// SessionRepository manages session rows.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository builds the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const sessionColumns = `id, timetable_id, course_id, day_of_week, start_minutes, end_minutes, weeks, location, created_at, updated_at, deleted_at`

// Create inserts a session, stamping id and lifecycle columns.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.DeletedAt = nil

	const query = `INSERT INTO sessions (id, timetable_id, course_id, day_of_week, start_minutes, end_minutes, weeks, location, created_at, updated_at, deleted_at)
VALUES (:id, :timetable_id, :course_id, :day_of_week, :start_minutes, :end_minutes, :weeks, :location, :created_at, :updated_at, :deleted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, s); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID retrieves one session row regardless of deletion state.
func (r *SessionRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	var s models.Session
	if err := sqlx.GetContext(ctx, r.exec(exec), &s, query, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActive returns every active session.
func (r *SessionRepository) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL ORDER BY created_at ASC, id ASC`
	var rows []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// ListActiveByTimetable returns active sessions of one timetable in
// insertion order, which conflict resolution relies on for tie-breaking.
func (r *SessionRepository) ListActiveByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE timetable_id = ? AND deleted_at IS NULL ORDER BY created_at ASC, id ASC`
	var rows []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable sessions: %w", err)
	}
	return rows, nil
}

// ListActiveByCourse returns active sessions belonging to one course.
func (r *SessionRepository) ListActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE course_id = ? AND deleted_at IS NULL ORDER BY created_at ASC, id ASC`
	var rows []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course sessions: %w", err)
	}
	return rows, nil
}

// ListDeleted returns soft-deleted sessions.
func (r *SessionRepository) ListDeleted(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC`
	var rows []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list deleted sessions: %w", err)
	}
	return rows, nil
}

// Update rewrites the mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, exec sqlx.ExtContext, s *models.Session) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET course_id = :course_id, day_of_week = :day_of_week, start_minutes = :start_minutes,
end_minutes = :end_minutes, weeks = :weeks, location = :location, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, s)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireAffected(res)
}

// UpdateTimes relocates a session to a new day and minute range.
func (r *SessionRepository) UpdateTimes(ctx context.Context, exec sqlx.ExtContext, id string, dayOfWeek, startMinutes, endMinutes int) error {
	const query = `UPDATE sessions SET day_of_week = ?, start_minutes = ?, end_minutes = ?, updated_at = ? WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, dayOfWeek, startMinutes, endMinutes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session times: %w", err)
	}
	return requireAffected(res)
}

// ReassignCourse moves every active session of one course onto another.
// Returns the number of sessions moved.
func (r *SessionRepository) ReassignCourse(ctx context.Context, exec sqlx.ExtContext, fromCourseID, toCourseID string) (int64, error) {
	const query = `UPDATE sessions SET course_id = ?, updated_at = ? WHERE course_id = ? AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, toCourseID, time.Now().UTC(), fromCourseID)
	if err != nil {
		return 0, fmt.Errorf("reassign sessions: %w", err)
	}
	return res.RowsAffected()
}

// SoftDelete marks a session deleted; already-deleted rows are left alone.
func (r *SessionRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error {
	const query = `UPDATE sessions SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt, id)
	if err != nil {
		return fmt.Errorf("soft delete session: %w", err)
	}
	return requireAffected(res)
}

// Restore clears the deletion marker.
func (r *SessionRepository) Restore(ctx context.Context, exec sqlx.ExtContext, id string, restoredAt time.Time) error {
	const query = `UPDATE sessions SET deleted_at = NULL, updated_at = ? WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, restoredAt, id)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return requireAffected(res)
}

// PermanentDelete removes the row outright. Irreversible.
func (r *SessionRepository) PermanentDelete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM sessions WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("permanent delete session: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteAllActive marks every active session deleted, returning the count.
func (r *SessionRepository) SoftDeleteAllActive(ctx context.Context, exec sqlx.ExtContext, deletedAt time.Time) (int64, error) {
	const query = `UPDATE sessions SET deleted_at = ?, updated_at = ? WHERE deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	return res.RowsAffected()
}

// Upsert inserts or overwrites a session by id, clearing any deletion marker.
func (r *SessionRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, s *models.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.DeletedAt = nil

	const query = `INSERT INTO sessions (id, timetable_id, course_id, day_of_week, start_minutes, end_minutes, weeks, location, created_at, updated_at, deleted_at)
VALUES (:id, :timetable_id, :course_id, :day_of_week, :start_minutes, :end_minutes, :weeks, :location, :created_at, :updated_at, NULL)
ON CONFLICT (id) DO UPDATE SET
	timetable_id = excluded.timetable_id,
	course_id = excluded.course_id,
	day_of_week = excluded.day_of_week,
	start_minutes = excluded.start_minutes,
	end_minutes = excluded.end_minutes,
	weeks = excluded.weeks,
	location = excluded.location,
	updated_at = excluded.updated_at,
	deleted_at = NULL`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, s); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
