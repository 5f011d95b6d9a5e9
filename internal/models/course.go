package models

import "time"

// Course groups sessions sharing a title within one timetable.
type Course struct {
	ID          string     `db:"id" json:"id"`
	TimetableID string     `db:"timetable_id" json:"timetableId"`
	Title       string     `db:"title" json:"title"`
	Color       *string    `db:"color" json:"color,omitempty"`
	TeacherName *string    `db:"teacher_name" json:"teacherName,omitempty"`
	Location    *string    `db:"location" json:"location,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// CoursePatch carries partial updates; nil fields are left untouched.
type CoursePatch struct {
	Title       *string `json:"title,omitempty"`
	Color       *string `json:"color,omitempty"`
	TeacherName *string `json:"teacherName,omitempty"`
	Location    *string `json:"location,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}
