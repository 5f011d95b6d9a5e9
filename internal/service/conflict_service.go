package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
	"github.com/wenqi-dev/timegrid/pkg/timeutil"
)

// SegmentConflict names a pair of overlapping segments by index.
type SegmentConflict struct {
	First  int    `json:"first"`
	Second int    `json:"second"`
	Reason string `json:"reason"`
}

// SegmentValidation is the outcome of checking a timetable's segment grid.
type SegmentValidation struct {
	IsValid   bool              `json:"isValid"`
	Conflicts []SegmentConflict `json:"conflicts"`
}

// ConflictFixResult counts overlaps found and repaired by the sweep.
type ConflictFixResult struct {
	ConflictsFound int `json:"conflictsFound"`
	ConflictsFixed int `json:"conflictsFixed"`
}

// PlacementRequest asks whether a session can land on a target day and
// segment without colliding with its neighbours.
type PlacementRequest struct {
	SessionID          string `json:"sessionId"`
	TargetDayOfWeek    int    `json:"targetDayOfWeek"`
	TargetSegmentIndex int    `json:"targetSegmentIndex"`
}

// PlacementCheck answers a placement request. When the placement is valid,
// StartMinutes and EndMinutes carry the proposed new times: the segment's
// own range, stretched past the segment end if the session is longer than
// the segment.
type PlacementCheck struct {
	Valid        bool   `json:"valid"`
	Reason       string `json:"reason,omitempty"`
	StartMinutes int    `json:"startMinutes"`
	EndMinutes   int    `json:"endMinutes"`
}

// ConflictService detects and repairs overlapping time ranges, both in a
// timetable's segment grid and among its scheduled sessions.
type ConflictService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewConflictService builds the service.
func NewConflictService(st *store.Store, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{store: st, logger: logger}
}

// ValidateSegments checks every segment pair of the timetable for overlap.
func (s *ConflictService) ValidateSegments(ctx context.Context, timetableID string) (SegmentValidation, error) {
	tt, err := s.activeTimetable(ctx, timetableID)
	if err != nil {
		return SegmentValidation{}, err
	}

	validation := SegmentValidation{IsValid: true, Conflicts: []SegmentConflict{}}
	segments := tt.Segments
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			if timeutil.Overlap(segments[i].StartMinutes, segments[i].EndMinutes,
				segments[j].StartMinutes, segments[j].EndMinutes) {
				validation.Conflicts = append(validation.Conflicts, SegmentConflict{
					First:  i,
					Second: j,
					Reason: fmt.Sprintf("%s (%s) 与 %s (%s) 时间重叠",
						segmentLabel(segments[i], i),
						timeutil.FormatRange(segments[i].StartMinutes, segments[i].EndMinutes),
						segmentLabel(segments[j], j),
						timeutil.FormatRange(segments[j].StartMinutes, segments[j].EndMinutes)),
				})
			}
		}
	}
	validation.IsValid = len(validation.Conflicts) == 0
	return validation, nil
}

func segmentLabel(seg models.Segment, index int) string {
	if seg.Label != "" {
		return seg.Label
	}
	return fmt.Sprintf("第%d节", index+1)
}

// FixTimeConflicts repairs overlapping sessions per day with a
// left-to-right sweep: sessions are ordered by start time, ties broken by
// insertion order, and each session overlapping its successor is truncated
// to end where the successor starts. One pass, one transaction.
func (s *ConflictService) FixTimeConflicts(ctx context.Context, timetableID string) (ConflictFixResult, error) {
	result := ConflictFixResult{}

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions, err := s.store.Sessions.ListActiveByTimetable(ctx, tx, timetableID)
		if err != nil {
			return err
		}

		byDay := make(map[int][]models.Session)
		for _, sess := range sessions {
			byDay[sess.DayOfWeek] = append(byDay[sess.DayOfWeek], sess)
		}

		for _, daySessions := range byDay {
			sort.SliceStable(daySessions, func(i, j int) bool {
				return daySessions[i].StartMinutes < daySessions[j].StartMinutes
			})
			for i := 0; i < len(daySessions)-1; i++ {
				cur := &daySessions[i]
				next := daySessions[i+1]
				if cur.EndMinutes > next.StartMinutes {
					result.ConflictsFound++
					cur.EndMinutes = next.StartMinutes
					if err := s.store.Sessions.UpdateTimes(ctx, tx, cur.ID, cur.DayOfWeek, cur.StartMinutes, cur.EndMinutes); err != nil {
						return err
					}
					result.ConflictsFixed++
				}
			}
		}
		return nil
	})
	if err != nil {
		return ConflictFixResult{}, err
	}

	if result.ConflictsFixed > 0 {
		s.logger.Info("session conflicts fixed",
			zap.String("timetable_id", timetableID),
			zap.Int("fixed", result.ConflictsFixed))
	}
	return result, nil
}

// CheckPlacement evaluates whether the session can occupy the target
// segment on the target day without overlapping another session there.
func (s *ConflictService) CheckPlacement(ctx context.Context, req PlacementRequest) (PlacementCheck, error) {
	sess, err := s.store.Sessions.GetByID(ctx, nil, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlacementCheck{}, appErrors.Clone(appErrors.ErrNotFound, "课程安排不存在")
		}
		return PlacementCheck{}, err
	}
	if sess.DeletedAt != nil {
		return PlacementCheck{}, appErrors.Clone(appErrors.ErrNotFound, "课程安排不存在")
	}

	if req.TargetDayOfWeek < 0 || req.TargetDayOfWeek > 6 {
		return PlacementCheck{Reason: "无效的星期"}, nil
	}

	tt, err := s.activeTimetable(ctx, sess.TimetableID)
	if err != nil {
		return PlacementCheck{}, err
	}
	if req.TargetSegmentIndex < 0 || req.TargetSegmentIndex >= len(tt.Segments) {
		return PlacementCheck{Reason: "目标节次不存在"}, nil
	}
	segment := tt.Segments[req.TargetSegmentIndex]

	newStart := segment.StartMinutes
	newEnd := segment.EndMinutes
	if sess.Duration() > segment.EndMinutes-segment.StartMinutes {
		newEnd = newStart + sess.Duration()
	}

	others, err := s.store.Sessions.ListActiveByTimetable(ctx, nil, sess.TimetableID)
	if err != nil {
		return PlacementCheck{}, err
	}
	for _, other := range others {
		if other.ID == sess.ID || other.DayOfWeek != req.TargetDayOfWeek {
			continue
		}
		if timeutil.Overlap(newStart, newEnd, other.StartMinutes, other.EndMinutes) {
			return PlacementCheck{
				Reason: fmt.Sprintf("与已有课程时间冲突 (%s)", timeutil.FormatRange(other.StartMinutes, other.EndMinutes)),
			}, nil
		}
	}

	return PlacementCheck{Valid: true, StartMinutes: newStart, EndMinutes: newEnd}, nil
}

// ApplyPlacement re-checks a placement and, when valid, moves the session
// to the computed times in one step.
func (s *ConflictService) ApplyPlacement(ctx context.Context, req PlacementRequest) (PlacementCheck, error) {
	check, err := s.CheckPlacement(ctx, req)
	if err != nil || !check.Valid {
		return check, err
	}
	if err := s.store.Sessions.UpdateTimes(ctx, nil, req.SessionID, req.TargetDayOfWeek, check.StartMinutes, check.EndMinutes); err != nil {
		return PlacementCheck{}, err
	}
	return check, nil
}

// StandardizeTimes rounds every session's start and end to the nearest
// quarter hour, returning the number of sessions changed.
func (s *ConflictService) StandardizeTimes(ctx context.Context, timetableID string) (int, error) {
	changed := 0
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions, err := s.store.Sessions.ListActiveByTimetable(ctx, tx, timetableID)
		if err != nil {
			return err
		}
		for _, sess := range sessions {
			start := timeutil.RoundToInterval(sess.StartMinutes, 15)
			end := timeutil.RoundToInterval(sess.EndMinutes, 15)
			if start == sess.StartMinutes && end == sess.EndMinutes {
				continue
			}
			if err := s.store.Sessions.UpdateTimes(ctx, tx, sess.ID, sess.DayOfWeek, start, end); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *ConflictService) activeTimetable(ctx context.Context, id string) (*models.Timetable, error) {
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
	return tt, nil
}
