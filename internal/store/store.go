// Package store implements the transactional entity store backing the
// schedule engine: per-entity repositories over SQLite with automatic
// lifecycle stamping, soft-delete views and a single transaction
// primitive every multi-step operation runs through.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store owns the database handle and the entity repositories.
type Store struct {
	db *sqlx.DB

	Timetables *TimetableRepository
	Courses    *CourseRepository
	Sessions   *SessionRepository
	Backups    *BackupRepository
}

// New builds a store over an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:         db,
		Timetables: NewTimetableRepository(db),
		Courses:    NewCourseRepository(db),
		Sessions:   NewSessionRepository(db),
		Backups:    NewBackupRepository(db),
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside one transaction. Every write fn performs through
// the repositories' exec parameter is durable iff fn returns nil; any
// error or panic rolls the whole transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
