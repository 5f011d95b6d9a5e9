package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenqi-dev/timegrid/pkg/database"
)

func TestMigrateFreshDatabase(t *testing.T) {
	db, err := database.NewMemory()
	require.NoError(t, err)
	defer db.Close()

	s := New(db)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	var version int
	require.NoError(t, db.GetContext(ctx, &version, `SELECT version FROM schema_version`))
	require.Equal(t, schemaVersion, version)

	for _, table := range []string{"timetables", "courses", "sessions", "backups"} {
		var count int
		require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table))
		require.Zero(t, count)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := database.NewMemory()
	require.NoError(t, err)
	defer db.Close()

	s := New(db)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	var version int
	require.NoError(t, db.GetContext(ctx, &version, `SELECT version FROM schema_version`))
	require.Equal(t, schemaVersion, version)
}

func TestMigrateBackfillsV1Records(t *testing.T) {
	db, err := database.NewMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	// Hand-build a v1 database holding records without lifecycle columns.
	for _, stmt := range migrationsV1 {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE schema_version (version INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (1)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO timetables (id, name, type) VALUES ('t1', 'Legacy', 'teacher')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO courses (id, timetable_id, title) VALUES ('c1', 't1', 'Math')`)
	require.NoError(t, err)

	s := New(db)
	require.NoError(t, s.Migrate(ctx))

	tt, err := s.Timetables.GetByID(ctx, nil, "t1")
	require.NoError(t, err)
	require.False(t, tt.CreatedAt.IsZero(), "legacy rows gain createdAt")
	require.False(t, tt.UpdatedAt.IsZero(), "legacy rows gain updatedAt")
	require.Nil(t, tt.DeletedAt)

	active, err := s.Courses.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1, "legacy rows are active after migration")
}
