package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
)

// OrphanedRecords lists active entities whose owner reference points at
// nothing active. A session failing both of its reference checks appears
// once per violated reference, mirroring the per-violation issue strings.
type OrphanedRecords struct {
	Courses  []models.Course  `json:"courses"`
	Sessions []models.Session `json:"sessions"`
}

// IntegrityReport is the outcome of a read-only consistency scan.
type IntegrityReport struct {
	IsValid  bool            `json:"isValid"`
	Issues   []string        `json:"issues"`
	Orphaned OrphanedRecords `json:"orphanedRecords"`
}

// CleanupResult counts the records soft-deleted by orphan cleanup.
type CleanupResult struct {
	CleanedCourses  int `json:"cleanedCourses"`
	CleanedSessions int `json:"cleanedSessions"`
}

// IntegrityService scans for dangling owner references and can soft-delete
// the offenders. Cleanup is deliberately reversible through the
// deleted-records view.
type IntegrityService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewIntegrityService builds the service.
func NewIntegrityService(st *store.Store, logger *zap.Logger) *IntegrityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityService{store: st, logger: logger}
}

// Check scans all active entities for dangling references. It never
// mutates state and never fails: an internal read error is reported as a
// single issue with IsValid=false.
func (s *IntegrityService) Check(ctx context.Context) *IntegrityReport {
	report := &IntegrityReport{
		Issues: []string{},
		Orphaned: OrphanedRecords{
			Courses:  []models.Course{},
			Sessions: []models.Session{},
		},
	}

	timetables, err := s.store.Timetables.ListActive(ctx, nil)
	if err != nil {
		return failedReport(report, err)
	}
	courses, err := s.store.Courses.ListActive(ctx, nil)
	if err != nil {
		return failedReport(report, err)
	}
	sessions, err := s.store.Sessions.ListActive(ctx, nil)
	if err != nil {
		return failedReport(report, err)
	}

	timetableIDs := make(map[string]struct{}, len(timetables))
	for _, t := range timetables {
		timetableIDs[t.ID] = struct{}{}
	}
	courseIDs := make(map[string]struct{}, len(courses))
	for _, c := range courses {
		courseIDs[c.ID] = struct{}{}
	}

	for _, course := range courses {
		if _, ok := timetableIDs[course.TimetableID]; !ok {
			report.Orphaned.Courses = append(report.Orphaned.Courses, course)
			report.Issues = append(report.Issues,
				fmt.Sprintf("Course %q (%s) references non-existent timetable %s", course.Title, course.ID, course.TimetableID))
		}
	}

	for _, session := range sessions {
		if _, ok := timetableIDs[session.TimetableID]; !ok {
			report.Orphaned.Sessions = append(report.Orphaned.Sessions, session)
			report.Issues = append(report.Issues,
				fmt.Sprintf("Session %s references non-existent timetable %s", session.ID, session.TimetableID))
		}
		if _, ok := courseIDs[session.CourseID]; !ok {
			report.Orphaned.Sessions = append(report.Orphaned.Sessions, session)
			report.Issues = append(report.Issues,
				fmt.Sprintf("Session %s references non-existent course %s", session.ID, session.CourseID))
		}
	}

	report.IsValid = len(report.Issues) == 0
	return report
}

func failedReport(report *IntegrityReport, err error) *IntegrityReport {
	report.Issues = append(report.Issues, fmt.Sprintf("Integrity check failed: %v", err))
	report.IsValid = false
	return report
}

// CleanupOrphans soft-deletes every record the scan flagged, one
// transaction per entity kind. A session flagged twice is deleted once;
// the counts reflect records actually removed from the active view.
func (s *IntegrityService) CleanupOrphans(ctx context.Context) (CleanupResult, error) {
	report := s.Check(ctx)
	result := CleanupResult{}

	if len(report.Orphaned.Courses) > 0 {
		err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
			now := time.Now().UTC()
			for _, course := range report.Orphaned.Courses {
				if err := s.store.Courses.SoftDelete(ctx, tx, course.ID, now); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						continue
					}
					return err
				}
				result.CleanedCourses++
			}
			return nil
		})
		if err != nil {
			return CleanupResult{}, err
		}
	}

	if len(report.Orphaned.Sessions) > 0 {
		err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
			now := time.Now().UTC()
			for _, session := range report.Orphaned.Sessions {
				if err := s.store.Sessions.SoftDelete(ctx, tx, session.ID, now); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						continue
					}
					return err
				}
				result.CleanedSessions++
			}
			return nil
		})
		if err != nil {
			return CleanupResult{}, err
		}
	}

	if result.CleanedCourses > 0 || result.CleanedSessions > 0 {
		s.logger.Info("cleaned orphaned records",
			zap.Int("courses", result.CleanedCourses),
			zap.Int("sessions", result.CleanedSessions))
	}
	return result, nil
}
