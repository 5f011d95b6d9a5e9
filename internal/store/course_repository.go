package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wenqi-dev/timegrid/internal/models"
)

// CourseRepository manages course rows.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository builds the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const courseColumns = `id, timetable_id, title, color, teacher_name, location, notes, created_at, updated_at, deleted_at`

// Create inserts a course, stamping id and lifecycle columns.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, c *models.Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.DeletedAt = nil

	const query = `INSERT INTO courses (id, timetable_id, title, color, teacher_name, location, notes, created_at, updated_at, deleted_at)
VALUES (:id, :timetable_id, :title, :color, :teacher_name, :location, :notes, :created_at, :updated_at, :deleted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, c); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// GetByID retrieves one course row regardless of deletion state.
func (r *CourseRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = ?`
	var c models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActive returns every active course.
func (r *CourseRepository) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE deleted_at IS NULL ORDER BY created_at ASC, id ASC`
	var rows []models.Course
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return rows, nil
}

// ListActiveByTimetable returns active courses of one timetable in
// insertion order.
func (r *CourseRepository) ListActiveByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) ([]models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE timetable_id = ? AND deleted_at IS NULL ORDER BY created_at ASC, id ASC`
	var rows []models.Course
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable courses: %w", err)
	}
	return rows, nil
}

// ListDeleted returns soft-deleted courses.
func (r *CourseRepository) ListDeleted(ctx context.Context, exec sqlx.ExtContext) ([]models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC`
	var rows []models.Course
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list deleted courses: %w", err)
	}
	return rows, nil
}

// FindActiveByTitle resolves a course by exact title within a timetable.
// Returns nil without error when no match exists.
func (r *CourseRepository) FindActiveByTitle(ctx context.Context, exec sqlx.ExtContext, timetableID, title string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE timetable_id = ? AND title = ? AND deleted_at IS NULL ORDER BY created_at ASC LIMIT 1`
	var c models.Course
	err := sqlx.GetContext(ctx, r.exec(exec), &c, query, timetableID, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find course by title: %w", err)
	}
	return &c, nil
}

// Update rewrites the mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, c *models.Course) error {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, color = :color, teacher_name = :teacher_name,
location = :location, notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, c)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return requireAffected(res)
}

// SoftDelete marks a course deleted; already-deleted rows are left alone.
func (r *CourseRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error {
	const query = `UPDATE courses SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt, id)
	if err != nil {
		return fmt.Errorf("soft delete course: %w", err)
	}
	return requireAffected(res)
}

// Restore clears the deletion marker.
func (r *CourseRepository) Restore(ctx context.Context, exec sqlx.ExtContext, id string, restoredAt time.Time) error {
	const query = `UPDATE courses SET deleted_at = NULL, updated_at = ? WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, restoredAt, id)
	if err != nil {
		return fmt.Errorf("restore course: %w", err)
	}
	return requireAffected(res)
}

// PermanentDelete removes the row outright. Irreversible.
func (r *CourseRepository) PermanentDelete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM courses WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("permanent delete course: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteAllActive marks every active course deleted, returning the count.
func (r *CourseRepository) SoftDeleteAllActive(ctx context.Context, exec sqlx.ExtContext, deletedAt time.Time) (int64, error) {
	const query = `UPDATE courses SET deleted_at = ?, updated_at = ? WHERE deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt)
	if err != nil {
		return 0, fmt.Errorf("clear courses: %w", err)
	}
	return res.RowsAffected()
}

// Upsert inserts or overwrites a course by id, clearing any deletion marker.
func (r *CourseRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, c *models.Course) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.DeletedAt = nil

	const query = `INSERT INTO courses (id, timetable_id, title, color, teacher_name, location, notes, created_at, updated_at, deleted_at)
VALUES (:id, :timetable_id, :title, :color, :teacher_name, :location, :notes, :created_at, :updated_at, NULL)
ON CONFLICT (id) DO UPDATE SET
	timetable_id = excluded.timetable_id,
	title = excluded.title,
	color = excluded.color,
	teacher_name = excluded.teacher_name,
	location = excluded.location,
	notes = excluded.notes,
	updated_at = excluded.updated_at,
	deleted_at = NULL`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, c); err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	return nil
}
