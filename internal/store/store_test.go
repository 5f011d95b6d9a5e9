package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/pkg/database"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func strPtr(v string) *string { return &v }

func TestCreateStampsLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tt := &models.Timetable{Name: "Class 3", Type: models.TimetableTypeStudent}
	require.NoError(t, s.Timetables.Create(ctx, nil, tt))
	require.NotEmpty(t, tt.ID)
	require.False(t, tt.CreatedAt.IsZero())
	require.Equal(t, tt.CreatedAt, tt.UpdatedAt)
	require.Nil(t, tt.DeletedAt)

	got, err := s.Timetables.GetByID(ctx, nil, tt.ID)
	require.NoError(t, err)
	require.Equal(t, "Class 3", got.Name)
	require.Nil(t, got.DeletedAt)
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tt := &models.Timetable{Name: "T", Type: models.TimetableTypeTeacher}
	require.NoError(t, s.Timetables.Create(ctx, nil, tt))
	createdAt := tt.CreatedAt

	require.NoError(t, s.Timetables.SoftDelete(ctx, nil, tt.ID, time.Now().UTC()))

	active, err := s.Timetables.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, active)

	deleted, err := s.Timetables.ListDeleted(ctx, nil)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.NotNil(t, deleted[0].DeletedAt)

	require.NoError(t, s.Timetables.Restore(ctx, nil, tt.ID, time.Now().UTC()))

	active, err = s.Timetables.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.True(t, active[0].CreatedAt.Equal(createdAt), "restore must not touch createdAt")

	deleted, err = s.Timetables.ListDeleted(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, deleted)
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &models.Session{TimetableID: "t1", CourseID: "c1", DayOfWeek: 1, StartMinutes: 480, EndMinutes: 530}
	require.NoError(t, s.Sessions.Create(ctx, nil, sess))

	require.NoError(t, s.Sessions.SoftDelete(ctx, nil, sess.ID, time.Now().UTC()))

	// Second delete finds no active row; callers treat that as already done.
	err := s.Sessions.SoftDelete(ctx, nil, sess.ID, time.Now().UTC())
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPermanentDeleteIsIrreversible(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := &models.Course{TimetableID: "t1", Title: "Math"}
	require.NoError(t, s.Courses.Create(ctx, nil, c))
	require.NoError(t, s.Courses.PermanentDelete(ctx, nil, c.ID))

	_, err := s.Courses.GetByID(ctx, nil, c.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)

	deleted, err := s.Courses.ListDeleted(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, deleted)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.Timetables.Create(ctx, tx, &models.Timetable{Name: "ghost", Type: models.TimetableTypeTeacher}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	active, err := s.Timetables.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, active, "rolled back write must not be observable")
}

func TestWithTxCommits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.Courses.Create(ctx, tx, &models.Course{TimetableID: "t1", Title: "A"}); err != nil {
			return err
		}
		return s.Courses.Create(ctx, tx, &models.Course{TimetableID: "t1", Title: "B"})
	})
	require.NoError(t, err)

	active, err := s.Courses.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 2)
}

func TestUpsertResurrectsSoftDeletedRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := &models.Course{TimetableID: "t1", Title: "Physics", Color: strPtr("#ff0000")}
	require.NoError(t, s.Courses.Create(ctx, nil, c))
	require.NoError(t, s.Courses.SoftDelete(ctx, nil, c.ID, time.Now().UTC()))

	replacement := &models.Course{ID: c.ID, TimetableID: "t1", Title: "Physics II"}
	require.NoError(t, s.Courses.Upsert(ctx, nil, replacement))

	got, err := s.Courses.GetByID(ctx, nil, c.ID)
	require.NoError(t, err)
	require.Nil(t, got.DeletedAt, "upsert must clear the deletion marker")
	require.Equal(t, "Physics II", got.Title)
}

func TestSegmentsAndWeeksRoundTripAsJSON(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tt := &models.Timetable{
		Name: "Segmented",
		Type: models.TimetableTypeStudent,
		Segments: models.SegmentList{
			{Label: "第1节", StartMinutes: 480, EndMinutes: 520},
			{Label: "第2节", StartMinutes: 535, EndMinutes: 575},
		},
	}
	require.NoError(t, s.Timetables.Create(ctx, nil, tt))

	got, err := s.Timetables.GetByID(ctx, nil, tt.ID)
	require.NoError(t, err)
	require.Len(t, got.Segments, 2)
	require.Equal(t, 535, got.Segments[1].StartMinutes)

	sess := &models.Session{TimetableID: tt.ID, CourseID: "c1", DayOfWeek: 2, StartMinutes: 480, EndMinutes: 520, Weeks: models.WeekList{1, 3, 5}}
	require.NoError(t, s.Sessions.Create(ctx, nil, sess))

	gotSess, err := s.Sessions.GetByID(ctx, nil, sess.ID)
	require.NoError(t, err)
	require.Equal(t, models.WeekList{1, 3, 5}, gotSess.Weeks)
}

func TestReassignCourseMovesOnlyActiveSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Sessions.Create(ctx, nil, &models.Session{TimetableID: "t1", CourseID: "old", DayOfWeek: i, StartMinutes: 480, EndMinutes: 520}))
	}
	dead := &models.Session{TimetableID: "t1", CourseID: "old", DayOfWeek: 3, StartMinutes: 480, EndMinutes: 520}
	require.NoError(t, s.Sessions.Create(ctx, nil, dead))
	require.NoError(t, s.Sessions.SoftDelete(ctx, nil, dead.ID, time.Now().UTC()))

	moved, err := s.Sessions.ReassignCourse(ctx, nil, "old", "new")
	require.NoError(t, err)
	require.EqualValues(t, 2, moved)

	remaining, err := s.Sessions.ListActiveByCourse(ctx, nil, "old")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
