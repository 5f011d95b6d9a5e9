package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*TimetableRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewTimetableRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestSoftDeleteMapsZeroRowsToNoRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE timetables SET deleted_at = \?, updated_at = \? WHERE id = \? AND deleted_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), nil, "already-deleted", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeletePropagatesDriverError(t *testing.T) {
	repo, mock := newMockRepo(t)

	boom := errors.New("disk full")
	mock.ExpectExec(`UPDATE timetables SET deleted_at = \?`).
		WillReturnError(boom)

	err := repo.SoftDelete(context.Background(), nil, "t1", time.Now())
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermanentDeleteIssuesHardDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM timetables WHERE id = \?`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.PermanentDelete(context.Background(), nil, "t1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
