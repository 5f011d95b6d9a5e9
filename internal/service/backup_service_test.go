package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	"github.com/wenqi-dev/timegrid/pkg/blob"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
)

type backupFixture struct {
	store *store.Store
	blobs *blob.MemoryStore
}

func newBackupService(t *testing.T) (*BackupService, *backupFixture) {
	t.Helper()
	s := openTestStore(t)
	blobs := blob.NewMemoryStore()
	svc := NewBackupService(s, blobs, "2.0", "导入: ", nil)
	return svc, &backupFixture{store: s, blobs: blobs}
}

func TestBackupCreateCapturesActiveRecords(t *testing.T) {
	svc, fx := newBackupService(t)
	ctx := context.Background()

	tt := seedTimetable(t, fx.store, "Main")
	c := seedCourse(t, fx.store, tt.ID, "Math")
	seedSession(t, fx.store, tt.ID, c.ID, 1, 480, 520)

	// Soft-deleted records stay out of the snapshot.
	ghost := seedCourse(t, fx.store, tt.ID, "Ghost")
	schedule := NewScheduleService(fx.store, nil)
	require.NoError(t, schedule.DeleteCourse(ctx, ghost.ID))

	record, err := svc.Create(ctx, "before exam week")
	require.NoError(t, err)
	require.Equal(t, "before exam week", record.Name)
	require.Equal(t, 3, record.RecordCount)
	require.Positive(t, record.Size)

	payload, err := fx.blobs.Get("backup_" + record.ID)
	require.NoError(t, err)
	require.EqualValues(t, record.Size, len(payload))

	var snapshot models.BackupSnapshot
	require.NoError(t, json.Unmarshal(payload, &snapshot))
	require.Equal(t, "2.0", snapshot.Metadata.Version)
	require.Len(t, snapshot.Data.Timetables, 1)
	require.Len(t, snapshot.Data.Courses, 1)
	require.Len(t, snapshot.Data.Sessions, 1)
}

func TestBackupRestoreClearExisting(t *testing.T) {
	svc, fx := newBackupService(t)
	ctx := context.Background()

	tt := seedTimetable(t, fx.store, "Original")
	record, err := svc.Create(ctx, "checkpoint")
	require.NoError(t, err)

	// Mutate after the snapshot.
	seedTimetable(t, fx.store, "Added later")

	result := svc.Restore(ctx, record.ID, RestoreOptions{ClearExisting: true, Merge: true})
	require.True(t, result.Success)
	require.Equal(t, 1, result.RestoredRecords)

	active, err := fx.store.Timetables.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, tt.ID, active[0].ID)

	// The cleared record is recoverable, not gone.
	deleted, err := fx.store.Timetables.ListDeleted(ctx, nil)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, "Added later", deleted[0].Name)
}

func TestBackupRestoreStrictModeFailsOnCollision(t *testing.T) {
	svc, fx := newBackupService(t)
	ctx := context.Background()

	seedTimetable(t, fx.store, "Main")
	record, err := svc.Create(ctx, "checkpoint")
	require.NoError(t, err)

	// Same ids still present, merge off: the whole restore must fail
	// and leave the store untouched.
	result := svc.Restore(ctx, record.ID, RestoreOptions{})
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)

	active, err := fx.store.Timetables.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestBackupRestoreMergeResurrectsDeleted(t *testing.T) {
	svc, fx := newBackupService(t)
	ctx := context.Background()

	tt := seedTimetable(t, fx.store, "Main")
	record, err := svc.Create(ctx, "checkpoint")
	require.NoError(t, err)

	schedule := NewScheduleService(fx.store, nil)
	require.NoError(t, schedule.DeleteTimetable(ctx, tt.ID))

	result := svc.Restore(ctx, record.ID, RestoreOptions{Merge: true})
	require.True(t, result.Success)

	got, err := schedule.GetTimetable(ctx, tt.ID)
	require.NoError(t, err)
	require.Equal(t, "Main", got.Name)
}

func TestBackupRestoreMissingPayload(t *testing.T) {
	svc, _ := newBackupService(t)

	result := svc.Restore(context.Background(), "no-such-backup", RestoreOptions{})
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}

func TestBackupExportRoundTripsThroughImport(t *testing.T) {
	svc, fx := newBackupService(t)
	ctx := context.Background()

	tt := seedTimetable(t, fx.store, "Main")
	c := seedCourse(t, fx.store, tt.ID, "Math")
	seedSession(t, fx.store, tt.ID, c.ID, 1, 480, 520)

	record, err := svc.Create(ctx, "portable")
	require.NoError(t, err)

	raw, err := svc.Export(ctx, record.ID)
	require.NoError(t, err)

	imported, err := svc.Import(ctx, raw)
	require.NoError(t, err)
	require.NotEqual(t, record.ID, imported.ID, "import must mint a fresh id")
	require.Equal(t, "导入: portable", imported.Name)
	require.Equal(t, record.RecordCount, imported.RecordCount)

	backups, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 2)
}

func TestBackupImportRejectsGarbage(t *testing.T) {
	svc, _ := newBackupService(t)

	_, err := svc.Import(context.Background(), []byte("not json at all"))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestBackupDeleteKeepsPayloadPurgeRemovesIt(t *testing.T) {
	svc, fx := newBackupService(t)
	ctx := context.Background()

	seedTimetable(t, fx.store, "Main")
	record, err := svc.Create(ctx, "checkpoint")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, record.ID))

	active, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// Payload survives a soft delete, so the record can come back.
	_, err = fx.blobs.Get("backup_" + record.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Undelete(ctx, record.ID))
	active, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, svc.Purge(ctx, record.ID))
	_, err = fx.blobs.Get("backup_" + record.ID)
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestBackupDeleteUnknownID(t *testing.T) {
	svc, _ := newBackupService(t)

	err := svc.Delete(context.Background(), "missing")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
