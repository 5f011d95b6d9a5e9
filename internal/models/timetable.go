package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimetableType distinguishes teacher-centric from student-centric views.
type TimetableType string

const (
	TimetableTypeTeacher TimetableType = "teacher"
	TimetableTypeStudent TimetableType = "student"
)

// Segment is one named slot of a timetable's daily template.
type Segment struct {
	Label        string `json:"label,omitempty"`
	StartMinutes int    `json:"startMinutes"`
	EndMinutes   int    `json:"endMinutes"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
}

// SegmentList stores the ordered daily template as a JSON column.
type SegmentList []Segment

// Value implements driver.Valuer.
func (s SegmentList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SegmentList) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported segment list type %T", src)
	}
}

// TimetablePatch carries partial updates; nil fields are left untouched.
type TimetablePatch struct {
	Name      *string        `json:"name,omitempty"`
	Type      *TimetableType `json:"type,omitempty"`
	WeekStart *int           `json:"weekStart,omitempty"`
	Days      *int           `json:"days,omitempty"`
	Segments  SegmentList    `json:"segments,omitempty"`
}

// Timetable is the root entity owning courses and sessions by id reference.
type Timetable struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Type      TimetableType `db:"type" json:"type"`
	WeekStart *int          `db:"week_start" json:"weekStart,omitempty"`
	Days      *int          `db:"days" json:"days,omitempty"`
	Segments  SegmentList   `db:"segments" json:"segments,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time    `db:"deleted_at" json:"deletedAt,omitempty"`
}
