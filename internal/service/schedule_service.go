package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
	"github.com/wenqi-dev/timegrid/pkg/timeutil"
)

// ScheduleService is the CRUD surface over timetables, courses and
// sessions. Deletes are soft and reversible; Purge variants remove rows
// for good.
type ScheduleService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewScheduleService builds the service.
func NewScheduleService(st *store.Store, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{store: st, logger: logger}
}

// CreateTimetable validates and stores a new timetable.
func (s *ScheduleService) CreateTimetable(ctx context.Context, tt models.Timetable) (*models.Timetable, error) {
	tt.Name = strings.TrimSpace(tt.Name)
	if err := validateTimetableFields(&tt); err != nil {
		return nil, err
	}
	enrichSegments(tt.Segments)
	if err := s.store.Timetables.Create(ctx, nil, &tt); err != nil {
		return nil, err
	}
	s.logger.Info("timetable created", zap.String("timetable_id", tt.ID))
	return &tt, nil
}

// CreateStandardTimetable stores a new timetable preloaded with the
// built-in six-period school template, Monday-start, five days.
func (s *ScheduleService) CreateStandardTimetable(ctx context.Context, name string, ttype models.TimetableType) (*models.Timetable, error) {
	segments := models.SegmentList{}
	for _, seg := range timeutil.StandardSchoolSchedule() {
		segments = append(segments, models.Segment{
			Label:        seg.Label,
			StartMinutes: seg.StartMinutes,
			EndMinutes:   seg.EndMinutes,
		})
	}
	weekStart := 1
	days := 5
	return s.CreateTimetable(ctx, models.Timetable{
		Name:      name,
		Type:      ttype,
		WeekStart: &weekStart,
		Days:      &days,
		Segments:  segments,
	})
}

// GetTimetable returns one active timetable.
func (s *ScheduleService) GetTimetable(ctx context.Context, id string) (*models.Timetable, error) {
	tt, err := s.store.Timetables.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
		}
		return nil, err
	}
	if tt.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
	}
	enrichSegments(tt.Segments)
	return tt, nil
}

// ListTimetables returns active timetables in insertion order.
func (s *ScheduleService) ListTimetables(ctx context.Context) ([]models.Timetable, error) {
	rows, err := s.store.Timetables.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		enrichSegments(rows[i].Segments)
	}
	return rows, nil
}

// ListDeletedTimetables returns the recoverable timetables.
func (s *ScheduleService) ListDeletedTimetables(ctx context.Context) ([]models.Timetable, error) {
	return s.store.Timetables.ListDeleted(ctx, nil)
}

// UpdateTimetable applies a partial update to an active timetable.
func (s *ScheduleService) UpdateTimetable(ctx context.Context, id string, patch models.TimetablePatch) (*models.Timetable, error) {
	tt, err := s.GetTimetable(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		tt.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Type != nil {
		tt.Type = *patch.Type
	}
	if patch.WeekStart != nil {
		tt.WeekStart = patch.WeekStart
	}
	if patch.Days != nil {
		tt.Days = patch.Days
	}
	if patch.Segments != nil {
		tt.Segments = patch.Segments
	}

	if err := validateTimetableFields(tt); err != nil {
		return nil, err
	}
	enrichSegments(tt.Segments)

	if err := s.store.Timetables.Update(ctx, nil, tt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
		}
		return nil, err
	}
	return tt, nil
}

// DeleteTimetable soft-deletes a timetable. Its courses and sessions stay
// put; the integrity scan surfaces them as orphans until cleanup or restore.
func (s *ScheduleService) DeleteTimetable(ctx context.Context, id string) error {
	return mapNoRows(s.store.Timetables.SoftDelete(ctx, nil, id, time.Now().UTC()), "课表不存在")
}

// RestoreTimetable brings a soft-deleted timetable back.
func (s *ScheduleService) RestoreTimetable(ctx context.Context, id string) error {
	return mapNoRows(s.store.Timetables.Restore(ctx, nil, id, time.Now().UTC()), "课表不存在")
}

// PurgeTimetable removes a timetable row permanently.
func (s *ScheduleService) PurgeTimetable(ctx context.Context, id string) error {
	return mapNoRows(s.store.Timetables.PermanentDelete(ctx, nil, id), "课表不存在")
}

// CreateCourse validates and stores a new course under an active timetable.
func (s *ScheduleService) CreateCourse(ctx context.Context, c models.Course) (*models.Course, error) {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "课程名称不能为空")
	}
	if _, err := s.GetTimetable(ctx, c.TimetableID); err != nil {
		return nil, err
	}
	if err := s.store.Courses.Create(ctx, nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCourse returns one active course.
func (s *ScheduleService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	c, err := s.store.Courses.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课程不存在")
		}
		return nil, err
	}
	if c.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "课程不存在")
	}
	return c, nil
}

// ListCourses returns a timetable's active courses in insertion order.
func (s *ScheduleService) ListCourses(ctx context.Context, timetableID string) ([]models.Course, error) {
	return s.store.Courses.ListActiveByTimetable(ctx, nil, timetableID)
}

// ListDeletedCourses returns the recoverable courses.
func (s *ScheduleService) ListDeletedCourses(ctx context.Context) ([]models.Course, error) {
	return s.store.Courses.ListDeleted(ctx, nil)
}

// UpdateCourse applies a partial update to an active course.
func (s *ScheduleService) UpdateCourse(ctx context.Context, id string, patch models.CoursePatch) (*models.Course, error) {
	c, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	applyCoursePatch(c, patch)
	if c.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "课程名称不能为空")
	}
	if err := s.store.Courses.Update(ctx, nil, c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课程不存在")
		}
		return nil, err
	}
	return c, nil
}

// DeleteCourse soft-deletes a course, leaving its sessions in place.
func (s *ScheduleService) DeleteCourse(ctx context.Context, id string) error {
	return mapNoRows(s.store.Courses.SoftDelete(ctx, nil, id, time.Now().UTC()), "课程不存在")
}

// RestoreCourse brings a soft-deleted course back.
func (s *ScheduleService) RestoreCourse(ctx context.Context, id string) error {
	return mapNoRows(s.store.Courses.Restore(ctx, nil, id, time.Now().UTC()), "课程不存在")
}

// PurgeCourse removes a course row permanently.
func (s *ScheduleService) PurgeCourse(ctx context.Context, id string) error {
	return mapNoRows(s.store.Courses.PermanentDelete(ctx, nil, id), "课程不存在")
}

// CreateSession validates and stores a new session.
func (s *ScheduleService) CreateSession(ctx context.Context, sess models.Session) (*models.Session, error) {
	if err := validateSessionFields(&sess); err != nil {
		return nil, err
	}
	if err := s.store.Sessions.Create(ctx, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession returns one active session.
func (s *ScheduleService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.store.Sessions.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课程安排不存在")
		}
		return nil, err
	}
	if sess.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "课程安排不存在")
	}
	return sess, nil
}

// ListSessions returns a timetable's active sessions in insertion order.
func (s *ScheduleService) ListSessions(ctx context.Context, timetableID string) ([]models.Session, error) {
	return s.store.Sessions.ListActiveByTimetable(ctx, nil, timetableID)
}

// ListDeletedSessions returns the recoverable sessions.
func (s *ScheduleService) ListDeletedSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.Sessions.ListDeleted(ctx, nil)
}

// UpdateSession applies a partial update to an active session.
func (s *ScheduleService) UpdateSession(ctx context.Context, id string, patch models.SessionPatch) (*models.Session, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.DayOfWeek != nil {
		sess.DayOfWeek = *patch.DayOfWeek
	}
	if patch.StartMinutes != nil {
		sess.StartMinutes = *patch.StartMinutes
	}
	if patch.EndMinutes != nil {
		sess.EndMinutes = *patch.EndMinutes
	}
	if patch.Location != nil {
		sess.Location = patch.Location
	}
	if patch.Weeks != nil {
		sess.Weeks = patch.Weeks
	}

	if err := validateSessionFields(sess); err != nil {
		return nil, err
	}
	if err := s.store.Sessions.Update(ctx, nil, sess); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课程安排不存在")
		}
		return nil, err
	}
	return sess, nil
}

// DeleteSession soft-deletes a session.
func (s *ScheduleService) DeleteSession(ctx context.Context, id string) error {
	return mapNoRows(s.store.Sessions.SoftDelete(ctx, nil, id, time.Now().UTC()), "课程安排不存在")
}

// RestoreSession brings a soft-deleted session back.
func (s *ScheduleService) RestoreSession(ctx context.Context, id string) error {
	return mapNoRows(s.store.Sessions.Restore(ctx, nil, id, time.Now().UTC()), "课程安排不存在")
}

// PurgeSession removes a session row permanently.
func (s *ScheduleService) PurgeSession(ctx context.Context, id string) error {
	return mapNoRows(s.store.Sessions.PermanentDelete(ctx, nil, id), "课程安排不存在")
}

func validateTimetableFields(tt *models.Timetable) error {
	if tt.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "名称不能为空")
	}
	if tt.Type != models.TimetableTypeTeacher && tt.Type != models.TimetableTypeStudent {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("无效的课表类型 %q", tt.Type))
	}
	if tt.WeekStart != nil && *tt.WeekStart != 0 && *tt.WeekStart != 1 {
		return appErrors.Clone(appErrors.ErrValidation, "周起始日必须是 0 或 1")
	}
	if tt.Days != nil && (*tt.Days < 1 || *tt.Days > 7) {
		return appErrors.Clone(appErrors.ErrValidation, "天数必须在 1 到 7 之间")
	}
	for i, seg := range tt.Segments {
		if !timeutil.IsValidRange(seg.StartMinutes, seg.EndMinutes) {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("第%d节时间范围无效 (%d-%d)", i+1, seg.StartMinutes, seg.EndMinutes))
		}
	}
	return nil
}

// enrichSegments fills the display-time fields from the canonical minute
// values.
func enrichSegments(segments models.SegmentList) {
	for i := range segments {
		segments[i].StartTime = timeutil.MinutesToTime(segments[i].StartMinutes)
		segments[i].EndTime = timeutil.MinutesToTime(segments[i].EndMinutes)
	}
}

func mapNoRows(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return err
}
