package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WeekList stores recurrence exception weeks as a JSON column. The core
// engine carries it through unprocessed.
type WeekList []int

// Value implements driver.Valuer.
func (w WeekList) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *WeekList) Scan(src interface{}) error {
	if src == nil {
		*w = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return fmt.Errorf("unsupported week list type %T", src)
	}
}

// Session is one scheduled occurrence of a course on a specific day and
// minute-of-day range.
type Session struct {
	ID           string     `db:"id" json:"id"`
	TimetableID  string     `db:"timetable_id" json:"timetableId"`
	CourseID     string     `db:"course_id" json:"courseId"`
	DayOfWeek    int        `db:"day_of_week" json:"dayOfWeek"`
	StartMinutes int        `db:"start_minutes" json:"startMinutes"`
	EndMinutes   int        `db:"end_minutes" json:"endMinutes"`
	Weeks        WeekList   `db:"weeks" json:"weeks,omitempty"`
	Location     *string    `db:"location" json:"location,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// Duration returns the session length in minutes.
func (s Session) Duration() int {
	return s.EndMinutes - s.StartMinutes
}

// SessionPatch carries partial updates; nil fields are left untouched.
type SessionPatch struct {
	DayOfWeek    *int     `json:"dayOfWeek,omitempty"`
	StartMinutes *int     `json:"startMinutes,omitempty"`
	EndMinutes   *int     `json:"endMinutes,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Weeks        WeekList `json:"weeks,omitempty"`
}
