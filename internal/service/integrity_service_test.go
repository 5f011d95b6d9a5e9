package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegrityCheckCleanStore(t *testing.T) {
	s := openTestStore(t)
	svc := NewIntegrityService(s, nil)
	ctx := context.Background()

	tt := seedTimetable(t, s, "Main")
	c := seedCourse(t, s, tt.ID, "Math")
	seedSession(t, s, tt.ID, c.ID, 1, 480, 520)

	report := svc.Check(ctx)
	require.True(t, report.IsValid)
	require.Empty(t, report.Issues)
	require.Empty(t, report.Orphaned.Courses)
	require.Empty(t, report.Orphaned.Sessions)
}

func TestIntegrityCheckFlagsOrphans(t *testing.T) {
	s := openTestStore(t)
	svc := NewIntegrityService(s, nil)
	ctx := context.Background()

	tt := seedTimetable(t, s, "Main")
	orphanCourse := seedCourse(t, s, "missing-timetable", "Dangling")
	goodCourse := seedCourse(t, s, tt.ID, "Math")
	orphanSession := seedSession(t, s, "missing-timetable", "missing-course", 1, 480, 520)
	seedSession(t, s, tt.ID, goodCourse.ID, 2, 480, 520)

	report := svc.Check(ctx)
	require.False(t, report.IsValid)
	require.Len(t, report.Orphaned.Courses, 1)
	require.Equal(t, orphanCourse.ID, report.Orphaned.Courses[0].ID)

	// One entry per violated reference: the session misses both its
	// timetable and its course, so it shows up twice.
	require.Len(t, report.Orphaned.Sessions, 2)
	require.Len(t, report.Issues, 3)
	require.Contains(t, report.Issues,
		fmt.Sprintf("Course %q (%s) references non-existent timetable %s", "Dangling", orphanCourse.ID, "missing-timetable"))
	require.Contains(t, report.Issues,
		fmt.Sprintf("Session %s references non-existent timetable %s", orphanSession.ID, "missing-timetable"))
	require.Contains(t, report.Issues,
		fmt.Sprintf("Session %s references non-existent course %s", orphanSession.ID, "missing-course"))
}

func TestIntegrityCheckTreatsSoftDeletedOwnerAsMissing(t *testing.T) {
	s := openTestStore(t)
	svc := NewIntegrityService(s, nil)
	ctx := context.Background()

	tt := seedTimetable(t, s, "Doomed")
	seedCourse(t, s, tt.ID, "Math")
	schedule := NewScheduleService(s, nil)
	require.NoError(t, schedule.DeleteTimetable(ctx, tt.ID))

	report := svc.Check(ctx)
	require.False(t, report.IsValid)
	require.Len(t, report.Orphaned.Courses, 1)
}

func TestCleanupOrphansCountsDistinctRecords(t *testing.T) {
	s := openTestStore(t)
	svc := NewIntegrityService(s, nil)
	ctx := context.Background()

	seedCourse(t, s, "gone", "A")
	seedCourse(t, s, "gone", "B")
	// Doubly orphaned session: flagged twice, deleted once.
	seedSession(t, s, "gone", "gone-course", 1, 480, 520)

	result, err := svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.CleanedCourses)
	require.Equal(t, 1, result.CleanedSessions)

	report := svc.Check(ctx)
	require.True(t, report.IsValid)

	// Cleanup is reversible: the records moved to the deleted view.
	deleted, err := s.Courses.ListDeleted(ctx, nil)
	require.NoError(t, err)
	require.Len(t, deleted, 2)
}

func TestCleanupOrphansIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	svc := NewIntegrityService(s, nil)
	ctx := context.Background()

	seedSession(t, s, "gone", "gone-course", 1, 480, 520)

	first, err := svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.CleanedSessions)

	second, err := svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	require.Zero(t, second.CleanedSessions)
	require.Zero(t, second.CleanedCourses)
}
