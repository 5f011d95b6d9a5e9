package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wenqi-dev/timegrid/internal/models"
)

// BackupRepository manages backup metadata rows. Snapshot payloads live
// in the blob store, not here.
type BackupRepository struct {
	db *sqlx.DB
}

// NewBackupRepository builds the repository.
func NewBackupRepository(db *sqlx.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

func (r *BackupRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const backupColumns = `id, name, size, record_count, metadata, created_at, updated_at, deleted_at`

// Create inserts a backup metadata record.
func (r *BackupRepository) Create(ctx context.Context, exec sqlx.ExtContext, b *models.Backup) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.DeletedAt = nil

	const query = `INSERT INTO backups (id, name, size, record_count, metadata, created_at, updated_at, deleted_at)
VALUES (:id, :name, :size, :record_count, :metadata, :created_at, :updated_at, :deleted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, b); err != nil {
		return fmt.Errorf("create backup record: %w", err)
	}
	return nil
}

// GetByID retrieves one backup record regardless of deletion state.
func (r *BackupRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Backup, error) {
	const query = `SELECT ` + backupColumns + ` FROM backups WHERE id = ?`
	var b models.Backup
	if err := sqlx.GetContext(ctx, r.exec(exec), &b, query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActive returns active backup records, most recent first.
func (r *BackupRepository) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Backup, error) {
	const query = `SELECT ` + backupColumns + ` FROM backups WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC`
	var rows []models.Backup
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return rows, nil
}

// ListDeleted returns soft-deleted backup records.
func (r *BackupRepository) ListDeleted(ctx context.Context, exec sqlx.ExtContext) ([]models.Backup, error) {
	const query = `SELECT ` + backupColumns + ` FROM backups WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC`
	var rows []models.Backup
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query); err != nil {
		return nil, fmt.Errorf("list deleted backups: %w", err)
	}
	return rows, nil
}

// SoftDelete marks a backup record deleted.
func (r *BackupRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error {
	const query = `UPDATE backups SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, deletedAt, deletedAt, id)
	if err != nil {
		return fmt.Errorf("soft delete backup: %w", err)
	}
	return requireAffected(res)
}

// Restore clears the deletion marker.
func (r *BackupRepository) Restore(ctx context.Context, exec sqlx.ExtContext, id string, restoredAt time.Time) error {
	const query = `UPDATE backups SET deleted_at = NULL, updated_at = ? WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, restoredAt, id)
	if err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	return requireAffected(res)
}

// PermanentDelete removes the record outright. Irreversible.
func (r *BackupRepository) PermanentDelete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM backups WHERE id = ?`
	res, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("permanent delete backup: %w", err)
	}
	return requireAffected(res)
}
