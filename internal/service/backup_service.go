package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	"github.com/wenqi-dev/timegrid/pkg/blob"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
)

// blobKey derives the payload key for a backup id.
func blobKey(id string) string {
	return "backup_" + id
}

// RestoreOptions control how a snapshot is applied.
//
// ClearExisting soft-deletes every active record first, so the prior state
// stays recoverable. Merge overwrites records whose ids collide instead of
// failing on them; with Merge off, an id collision aborts the whole restore.
type RestoreOptions struct {
	ClearExisting bool `json:"clearExisting"`
	Merge         bool `json:"merge"`
}

// RestoreResult reports the outcome of a restore attempt. A failed restore
// leaves the store untouched.
type RestoreResult struct {
	Success         bool   `json:"success"`
	RestoredRecords int    `json:"restoredRecords"`
	Error           string `json:"error,omitempty"`
}

// BackupService captures, restores, exports and imports full-store
// snapshots. Metadata rows live in the entity store, payloads in the blob
// store, keyed by backup id.
type BackupService struct {
	store   *store.Store
	blobs   blob.Store
	version string
	prefix  string
	logger  *zap.Logger
}

// NewBackupService builds the service. version stamps newly created
// snapshots; prefix is prepended to imported snapshot names.
func NewBackupService(st *store.Store, blobs blob.Store, version, prefix string, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "2.0"
	}
	return &BackupService{store: st, blobs: blobs, version: version, prefix: prefix, logger: logger}
}

// Create captures all active records into a new snapshot and returns its id.
// The payload is written to the blob store first; if the metadata insert
// then fails, the payload is removed again so no orphan blob is left behind.
func (s *BackupService) Create(ctx context.Context, name string) (*models.Backup, error) {
	if name == "" {
		name = "备份 " + time.Now().Format("2006-01-02 15:04")
	}

	timetables, err := s.store.Timetables.ListActive(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "collect timetables")
	}
	courses, err := s.store.Courses.ListActive(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "collect courses")
	}
	sessions, err := s.store.Sessions.ListActive(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "collect sessions")
	}

	id := uuid.NewString()
	total := len(timetables) + len(courses) + len(sessions)
	snapshot := models.BackupSnapshot{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Data: models.BackupData{
			Timetables: timetables,
			Courses:    courses,
			Sessions:   sessions,
		},
		Metadata: models.SnapshotMetadata{
			Version:      s.version,
			TotalRecords: total,
		},
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode snapshot")
	}

	if err := s.blobs.Put(blobKey(id), payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store snapshot payload")
	}

	meta, err := json.Marshal(models.BackupMeta{
		Version: s.version,
		Tables:  []string{"timetables", "courses", "sessions"},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode metadata")
	}

	record := &models.Backup{
		ID:          id,
		Name:        name,
		Size:        int64(len(payload)),
		RecordCount: total,
		Metadata:    types.JSONText(meta),
	}
	if err := s.store.Backups.Create(ctx, nil, record); err != nil {
		_ = s.blobs.Delete(blobKey(id))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record backup")
	}

	s.logger.Info("backup created",
		zap.String("backup_id", id),
		zap.Int("records", total),
		zap.Int64("size", record.Size))
	return record, nil
}

// List returns active backup records, most recent first.
func (s *BackupService) List(ctx context.Context) ([]models.Backup, error) {
	return s.store.Backups.ListActive(ctx, nil)
}

// ListDeleted returns soft-deleted backup records.
func (s *BackupService) ListDeleted(ctx context.Context) ([]models.Backup, error) {
	return s.store.Backups.ListDeleted(ctx, nil)
}

// Restore applies a stored snapshot in a single transaction. Any failure,
// including an id collision in strict mode, rolls the whole thing back and
// is reported in the result rather than as an error return.
func (s *BackupService) Restore(ctx context.Context, id string, opts RestoreOptions) RestoreResult {
	payload, err := s.blobs.Get(blobKey(id))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return RestoreResult{Error: "备份不存在"}
		}
		return RestoreResult{Error: fmt.Sprintf("read snapshot payload: %v", err)}
	}

	var snapshot models.BackupSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return RestoreResult{Error: fmt.Sprintf("备份数据格式无效: %v", err)}
	}

	restored := 0
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if opts.ClearExisting {
			now := time.Now().UTC()
			if _, err := s.store.Sessions.SoftDeleteAllActive(ctx, tx, now); err != nil {
				return err
			}
			if _, err := s.store.Courses.SoftDeleteAllActive(ctx, tx, now); err != nil {
				return err
			}
			if _, err := s.store.Timetables.SoftDeleteAllActive(ctx, tx, now); err != nil {
				return err
			}
		}

		for i := range snapshot.Data.Timetables {
			t := snapshot.Data.Timetables[i]
			if err := s.writeTimetable(ctx, tx, &t, opts.Merge); err != nil {
				return err
			}
			restored++
		}
		for i := range snapshot.Data.Courses {
			c := snapshot.Data.Courses[i]
			if err := s.writeCourse(ctx, tx, &c, opts.Merge); err != nil {
				return err
			}
			restored++
		}
		for i := range snapshot.Data.Sessions {
			sess := snapshot.Data.Sessions[i]
			if err := s.writeSession(ctx, tx, &sess, opts.Merge); err != nil {
				return err
			}
			restored++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("restore failed", zap.String("backup_id", id), zap.Error(err))
		return RestoreResult{Error: err.Error()}
	}

	s.logger.Info("backup restored",
		zap.String("backup_id", id),
		zap.Int("records", restored),
		zap.Bool("clear_existing", opts.ClearExisting),
		zap.Bool("merge", opts.Merge))
	return RestoreResult{Success: true, RestoredRecords: restored}
}

func (s *BackupService) writeTimetable(ctx context.Context, tx *sqlx.Tx, t *models.Timetable, merge bool) error {
	if merge {
		return s.store.Timetables.Upsert(ctx, tx, t)
	}
	t.ID = ensureID(t.ID)
	return s.store.Timetables.Create(ctx, tx, t)
}

func (s *BackupService) writeCourse(ctx context.Context, tx *sqlx.Tx, c *models.Course, merge bool) error {
	if merge {
		return s.store.Courses.Upsert(ctx, tx, c)
	}
	c.ID = ensureID(c.ID)
	return s.store.Courses.Create(ctx, tx, c)
}

func (s *BackupService) writeSession(ctx context.Context, tx *sqlx.Tx, sess *models.Session, merge bool) error {
	if merge {
		return s.store.Sessions.Upsert(ctx, tx, sess)
	}
	sess.ID = ensureID(sess.ID)
	return s.store.Sessions.Create(ctx, tx, sess)
}

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// Export returns the raw snapshot payload for an existing backup.
func (s *BackupService) Export(ctx context.Context, id string) ([]byte, error) {
	if _, err := s.store.Backups.GetByID(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "备份不存在")
		}
		return nil, err
	}
	payload, err := s.blobs.Get(blobKey(id))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "备份数据不存在")
		}
		return nil, err
	}
	return payload, nil
}

// Import registers an externally produced snapshot under a fresh id. The
// original snapshot id is discarded so an import can never clobber an
// existing backup; the stored name gains the configured import prefix.
func (s *BackupService) Import(ctx context.Context, raw []byte) (*models.Backup, error) {
	var snapshot models.BackupSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "备份数据格式无效")
	}
	if snapshot.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "备份数据格式无效")
	}

	snapshot.ID = uuid.NewString()
	snapshot.Name = s.prefix + snapshot.Name
	snapshot.CreatedAt = time.Now().UTC()
	total := len(snapshot.Data.Timetables) + len(snapshot.Data.Courses) + len(snapshot.Data.Sessions)
	snapshot.Metadata.TotalRecords = total

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode snapshot")
	}

	if err := s.blobs.Put(blobKey(snapshot.ID), payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store snapshot payload")
	}

	meta, err := json.Marshal(models.BackupMeta{
		Version: snapshot.Metadata.Version,
		Tables:  []string{"timetables", "courses", "sessions"},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode metadata")
	}

	record := &models.Backup{
		ID:          snapshot.ID,
		Name:        snapshot.Name,
		Size:        int64(len(payload)),
		RecordCount: total,
		Metadata:    types.JSONText(meta),
	}
	if err := s.store.Backups.Create(ctx, nil, record); err != nil {
		_ = s.blobs.Delete(blobKey(snapshot.ID))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record backup")
	}

	s.logger.Info("backup imported", zap.String("backup_id", record.ID), zap.Int("records", total))
	return record, nil
}

// Delete soft-deletes the backup record. The payload stays in the blob
// store so the record can be undeleted later.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	if err := s.store.Backups.SoftDelete(ctx, nil, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "备份不存在")
		}
		return err
	}
	return nil
}

// Undelete clears the deletion marker on a backup record.
func (s *BackupService) Undelete(ctx context.Context, id string) error {
	if err := s.store.Backups.Restore(ctx, nil, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "备份不存在")
		}
		return err
	}
	return nil
}

// Purge removes the backup record and its payload permanently.
func (s *BackupService) Purge(ctx context.Context, id string) error {
	if err := s.store.Backups.PermanentDelete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "备份不存在")
		}
		return err
	}
	if err := s.blobs.Delete(blobKey(id)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return err
	}
	return nil
}
