package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	"github.com/wenqi-dev/timegrid/pkg/database"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedTimetable(t *testing.T, s *store.Store, name string) *models.Timetable {
	t.Helper()
	tt := &models.Timetable{Name: name, Type: models.TimetableTypeTeacher}
	require.NoError(t, s.Timetables.Create(context.Background(), nil, tt))
	return tt
}

func seedCourse(t *testing.T, s *store.Store, timetableID, title string) *models.Course {
	t.Helper()
	c := &models.Course{TimetableID: timetableID, Title: title}
	require.NoError(t, s.Courses.Create(context.Background(), nil, c))
	return c
}

func seedSession(t *testing.T, s *store.Store, timetableID, courseID string, day, start, end int) *models.Session {
	t.Helper()
	sess := &models.Session{
		TimetableID:  timetableID,
		CourseID:     courseID,
		DayOfWeek:    day,
		StartMinutes: start,
		EndMinutes:   end,
	}
	require.NoError(t, s.Sessions.Create(context.Background(), nil, sess))
	return sess
}

func ptrStr(v string) *string { return &v }

func ptrInt(v int) *int { return &v }
