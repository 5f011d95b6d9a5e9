package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
	"github.com/wenqi-dev/timegrid/pkg/timeutil"
)

// MergeResult reports the outcome of merging duplicate courses.
type MergeResult struct {
	MergedCount      int      `json:"mergedCount"`
	RemovedCourseIDs []string `json:"removedCourseIds"`
}

// CourseUpdate pairs a course id with the fields to change.
type CourseUpdate struct {
	ID    string             `json:"id"`
	Patch models.CoursePatch `json:"patch"`
}

// BatchService executes multi-record mutations. Each operation runs in one
// transaction, so a mid-batch failure leaves nothing half-applied.
type BatchService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewBatchService builds the service.
func NewBatchService(st *store.Store, logger *zap.Logger) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{store: st, logger: logger}
}

// DuplicateTimetable deep-copies a timetable with all its active courses
// and sessions under fresh ids, returning the new timetable. Sessions
// whose course is not active in the source are skipped rather than carried
// over as dangling references.
func (s *BatchService) DuplicateTimetable(ctx context.Context, sourceID, newName string) (*models.Timetable, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "名称不能为空")
	}

	var clone *models.Timetable
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		source, err := s.store.Timetables.GetByID(ctx, tx, sourceID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
			}
			return err
		}
		if source.DeletedAt != nil {
			return appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
		}

		clone = &models.Timetable{
			Name:      newName,
			Type:      source.Type,
			WeekStart: source.WeekStart,
			Days:      source.Days,
			Segments:  source.Segments,
		}
		if err := s.store.Timetables.Create(ctx, tx, clone); err != nil {
			return err
		}

		courses, err := s.store.Courses.ListActiveByTimetable(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		courseIDMap := make(map[string]string, len(courses))
		for _, c := range courses {
			copied := c
			copied.ID = ""
			copied.TimetableID = clone.ID
			if err := s.store.Courses.Create(ctx, tx, &copied); err != nil {
				return err
			}
			courseIDMap[c.ID] = copied.ID
		}

		sessions, err := s.store.Sessions.ListActiveByTimetable(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		for _, sess := range sessions {
			newCourseID, ok := courseIDMap[sess.CourseID]
			if !ok {
				continue
			}
			copied := sess
			copied.ID = ""
			copied.TimetableID = clone.ID
			copied.CourseID = newCourseID
			if err := s.store.Sessions.Create(ctx, tx, &copied); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timetable duplicated",
		zap.String("source_id", sourceID),
		zap.String("clone_id", clone.ID))
	return clone, nil
}

// MergeDuplicateCourses collapses courses within one timetable whose
// titles match case-insensitively after trimming. The oldest course of
// each group survives; sessions of the others are reassigned to it and the
// duplicates are soft-deleted.
func (s *BatchService) MergeDuplicateCourses(ctx context.Context, timetableID string) (MergeResult, error) {
	result := MergeResult{RemovedCourseIDs: []string{}}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		courses, err := s.store.Courses.ListActiveByTimetable(ctx, tx, timetableID)
		if err != nil {
			return err
		}

		groups := make(map[string][]models.Course)
		order := []string{}
		for _, c := range courses {
			key := strings.ToLower(strings.TrimSpace(c.Title))
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], c)
		}

		now := time.Now().UTC()
		for _, key := range order {
			group := groups[key]
			if len(group) < 2 {
				continue
			}
			keeper := group[0]
			for _, dup := range group[1:] {
				if _, err := s.store.Sessions.ReassignCourse(ctx, tx, dup.ID, keeper.ID); err != nil {
					return err
				}
				if err := s.store.Courses.SoftDelete(ctx, tx, dup.ID, now); err != nil {
					return err
				}
				result.MergedCount++
				result.RemovedCourseIDs = append(result.RemovedCourseIDs, dup.ID)
			}
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}

	if result.MergedCount > 0 {
		s.logger.Info("duplicate courses merged",
			zap.String("timetable_id", timetableID),
			zap.Int("merged", result.MergedCount))
	}
	return result, nil
}

// MoveSessions shifts the listed sessions to a new day and start minute,
// keeping each session's duration. Ids that no longer resolve to an active
// session are skipped.
func (s *BatchService) MoveSessions(ctx context.Context, ids []string, newDay, newStartMinutes int) (int, error) {
	if newDay < 0 || newDay > 6 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("无效的星期 %d", newDay))
	}
	if newStartMinutes < 0 || newStartMinutes >= timeutil.MinutesPerDay {
		return 0, appErrors.Clone(appErrors.ErrValidation, "无效的开始时间")
	}

	moved := 0
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, id := range ids {
			sess, err := s.store.Sessions.GetByID(ctx, tx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			if sess.DeletedAt != nil {
				continue
			}
			newEnd := newStartMinutes + sess.Duration()
			if err := s.store.Sessions.UpdateTimes(ctx, tx, id, newDay, newStartMinutes, newEnd); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// CreateSessions inserts a batch of sessions atomically, returning the new
// ids in input order. The first invalid entry fails the whole batch.
func (s *BatchService) CreateSessions(ctx context.Context, sessions []models.Session) ([]string, error) {
	for i := range sessions {
		if err := validateSessionFields(&sessions[i]); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(sessions))
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i := range sessions {
			sessions[i].ID = ""
			if err := s.store.Sessions.Create(ctx, tx, &sessions[i]); err != nil {
				return err
			}
			ids = append(ids, sessions[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteSessions soft-deletes a batch of sessions atomically. Already
// deleted or unknown ids are treated as done.
func (s *BatchService) DeleteSessions(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for _, id := range ids {
			if err := s.store.Sessions.SoftDelete(ctx, tx, id, now); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// UpdateCourses applies a batch of partial course updates atomically.
// Unknown or deleted course ids are skipped.
func (s *BatchService) UpdateCourses(ctx context.Context, updates []CourseUpdate) (int, error) {
	updated := 0
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, u := range updates {
			course, err := s.store.Courses.GetByID(ctx, tx, u.ID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			if course.DeletedAt != nil {
				continue
			}
			applyCoursePatch(course, u.Patch)
			if course.Title == "" {
				return appErrors.Clone(appErrors.ErrValidation, "课程名称不能为空")
			}
			if err := s.store.Courses.Update(ctx, tx, course); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func applyCoursePatch(c *models.Course, p models.CoursePatch) {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Color != nil {
		c.Color = p.Color
	}
	if p.TeacherName != nil {
		c.TeacherName = p.TeacherName
	}
	if p.Location != nil {
		c.Location = p.Location
	}
	if p.Notes != nil {
		c.Notes = p.Notes
	}
}

func validateSessionFields(sess *models.Session) error {
	if sess.TimetableID == "" || sess.CourseID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "缺少必填字段")
	}
	if sess.DayOfWeek < 0 || sess.DayOfWeek > 6 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("无效的星期 %d", sess.DayOfWeek))
	}
	if !timeutil.IsValidRange(sess.StartMinutes, sess.EndMinutes) {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("无效的时间范围 %d-%d", sess.StartMinutes, sess.EndMinutes))
	}
	return nil
}
