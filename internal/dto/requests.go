package dto

import (
	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/service"
)

// CreateTimetableRequest is the payload for creating a timetable.
type CreateTimetableRequest struct {
	Name      string             `json:"name" validate:"required"`
	Type      string             `json:"type" validate:"required,oneof=teacher student"`
	WeekStart *int               `json:"weekStart" validate:"omitempty,oneof=0 1"`
	Days      *int               `json:"days" validate:"omitempty,min=1,max=7"`
	Segments  models.SegmentList `json:"segments" validate:"omitempty,dive"`
	Standard  bool               `json:"standard"`
}

// ToModel maps the request onto the entity shape.
func (r CreateTimetableRequest) ToModel() models.Timetable {
	return models.Timetable{
		Name:      r.Name,
		Type:      models.TimetableType(r.Type),
		WeekStart: r.WeekStart,
		Days:      r.Days,
		Segments:  r.Segments,
	}
}

// UpdateTimetableRequest is a partial timetable update.
type UpdateTimetableRequest struct {
	Name      *string            `json:"name" validate:"omitempty,min=1"`
	Type      *string            `json:"type" validate:"omitempty,oneof=teacher student"`
	WeekStart *int               `json:"weekStart" validate:"omitempty,oneof=0 1"`
	Days      *int               `json:"days" validate:"omitempty,min=1,max=7"`
	Segments  models.SegmentList `json:"segments"`
}

// ToPatch maps the request onto the patch shape.
func (r UpdateTimetableRequest) ToPatch() models.TimetablePatch {
	patch := models.TimetablePatch{
		WeekStart: r.WeekStart,
		Days:      r.Days,
		Segments:  r.Segments,
	}
	patch.Name = r.Name
	if r.Type != nil {
		t := models.TimetableType(*r.Type)
		patch.Type = &t
	}
	return patch
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	TimetableID string  `json:"timetableId" validate:"required"`
	Title       string  `json:"title" validate:"required"`
	Color       *string `json:"color"`
	TeacherName *string `json:"teacherName"`
	Location    *string `json:"location"`
	Notes       *string `json:"notes"`
}

// ToModel maps the request onto the entity shape.
func (r CreateCourseRequest) ToModel() models.Course {
	return models.Course{
		TimetableID: r.TimetableID,
		Title:       r.Title,
		Color:       r.Color,
		TeacherName: r.TeacherName,
		Location:    r.Location,
		Notes:       r.Notes,
	}
}

// CreateSessionRequest is the payload for creating a session.
type CreateSessionRequest struct {
	TimetableID  string          `json:"timetableId" validate:"required"`
	CourseID     string          `json:"courseId" validate:"required"`
	DayOfWeek    int             `json:"dayOfWeek" validate:"min=0,max=6"`
	StartMinutes int             `json:"startMinutes" validate:"min=0,max=1439"`
	EndMinutes   int             `json:"endMinutes" validate:"min=1,max=1440"`
	Weeks        models.WeekList `json:"weeks"`
	Location     *string         `json:"location"`
}

// ToModel maps the request onto the entity shape.
func (r CreateSessionRequest) ToModel() models.Session {
	return models.Session{
		TimetableID:  r.TimetableID,
		CourseID:     r.CourseID,
		DayOfWeek:    r.DayOfWeek,
		StartMinutes: r.StartMinutes,
		EndMinutes:   r.EndMinutes,
		Weeks:        r.Weeks,
		Location:     r.Location,
	}
}

// CreateBackupRequest names a new snapshot; the name may be blank.
type CreateBackupRequest struct {
	Name string `json:"name"`
}

// RestoreBackupRequest selects the restore mode.
type RestoreBackupRequest struct {
	ClearExisting bool `json:"clearExisting"`
	Merge         bool `json:"merge"`
}

// DuplicateTimetableRequest names the copy.
type DuplicateTimetableRequest struct {
	Name string `json:"name" validate:"required"`
}

// MoveSessionsRequest shifts a set of sessions to a new day and start.
type MoveSessionsRequest struct {
	SessionIDs   []string `json:"sessionIds" validate:"required,min=1"`
	DayOfWeek    int      `json:"dayOfWeek" validate:"min=0,max=6"`
	StartMinutes int      `json:"startMinutes" validate:"min=0,max=1439"`
}

// BatchCreateSessionsRequest inserts several sessions atomically.
type BatchCreateSessionsRequest struct {
	Sessions []CreateSessionRequest `json:"sessions" validate:"required,min=1,dive"`
}

// BatchDeleteSessionsRequest soft-deletes several sessions atomically.
type BatchDeleteSessionsRequest struct {
	SessionIDs []string `json:"sessionIds" validate:"required,min=1"`
}

// BatchUpdateCoursesRequest patches several courses atomically.
type BatchUpdateCoursesRequest struct {
	Updates []service.CourseUpdate `json:"updates" validate:"required,min=1"`
}

// PlacementCheckRequest asks whether a session fits a day and segment.
type PlacementCheckRequest struct {
	SessionID          string `json:"sessionId" validate:"required"`
	TargetDayOfWeek    int    `json:"targetDayOfWeek" validate:"min=0,max=6"`
	TargetSegmentIndex int    `json:"targetSegmentIndex" validate:"min=0"`
}

// ToServiceRequest maps onto the engine's placement shape.
func (r PlacementCheckRequest) ToServiceRequest() service.PlacementRequest {
	return service.PlacementRequest{
		SessionID:          r.SessionID,
		TargetDayOfWeek:    r.TargetDayOfWeek,
		TargetSegmentIndex: r.TargetSegmentIndex,
	}
}
