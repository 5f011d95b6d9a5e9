package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// schemaVersion is the version the migrator brings the database up to.
const schemaVersion = 2

var migrationsV1 = []string{
	`CREATE TABLE IF NOT EXISTS timetables (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		week_start INTEGER,
		days INTEGER,
		segments TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		timetable_id TEXT NOT NULL,
		title TEXT NOT NULL,
		color TEXT,
		teacher_name TEXT,
		location TEXT,
		notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_courses_timetable ON courses(timetable_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		timetable_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		start_minutes INTEGER NOT NULL,
		end_minutes INTEGER NOT NULL,
		weeks TEXT,
		location TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_timetable ON sessions(timetable_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_course ON sessions(course_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_timetable_day ON sessions(timetable_id, day_of_week)`,
}

var migrationsV2 = []string{
	`CREATE TABLE IF NOT EXISTS backups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		deleted_at TIMESTAMP
	)`,
	`ALTER TABLE timetables ADD COLUMN created_at TIMESTAMP`,
	`ALTER TABLE timetables ADD COLUMN updated_at TIMESTAMP`,
	`ALTER TABLE timetables ADD COLUMN deleted_at TIMESTAMP`,
	`ALTER TABLE courses ADD COLUMN created_at TIMESTAMP`,
	`ALTER TABLE courses ADD COLUMN updated_at TIMESTAMP`,
	`ALTER TABLE courses ADD COLUMN deleted_at TIMESTAMP`,
	`ALTER TABLE sessions ADD COLUMN created_at TIMESTAMP`,
	`ALTER TABLE sessions ADD COLUMN updated_at TIMESTAMP`,
	`ALTER TABLE sessions ADD COLUMN deleted_at TIMESTAMP`,
}

// Migrate brings the schema up to the current version. It must run
// before the store is used; a failure leaves the recorded version
// untouched, so the next start retries the same upgrade. Re-running
// against an up-to-date database is a no-op guarded by the version
// counter alone.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}

	for v := current + 1; v <= schemaVersion; v++ {
		version := v
		if err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
			return applyMigration(ctx, tx, version)
		}); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version, err)
		}
	}
	return nil
}

func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version, `SELECT version FROM schema_version LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func applyMigration(ctx context.Context, tx *sqlx.Tx, version int) error {
	var statements []string
	switch version {
	case 1:
		statements = migrationsV1
	case 2:
		statements = migrationsV2
	default:
		return fmt.Errorf("unknown schema version %d", version)
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply statement: %w", err)
		}
	}

	if version == 2 {
		if err := backfillTimestamps(ctx, tx); err != nil {
			return err
		}
	}

	return recordVersion(ctx, tx, version)
}

// backfillTimestamps stamps pre-v2 rows with the migration instant and a
// cleared deletion marker, matching the lifecycle every new row gets.
func backfillTimestamps(ctx context.Context, tx *sqlx.Tx) error {
	now := time.Now().UTC()
	for _, table := range []string{"timetables", "courses", "sessions"} {
		query := fmt.Sprintf(
			`UPDATE %s SET created_at = COALESCE(created_at, ?), updated_at = COALESCE(updated_at, ?), deleted_at = NULL`,
			table)
		if _, err := tx.ExecContext(ctx, query, now, now); err != nil {
			return fmt.Errorf("backfill %s: %w", table, err)
		}
	}
	return nil
}

func recordVersion(ctx context.Context, tx *sqlx.Tx, version int) error {
	res, err := tx.ExecContext(ctx, `UPDATE schema_version SET version = ?`, version)
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if affected == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}
