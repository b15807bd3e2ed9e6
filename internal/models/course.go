package models

import "time"

// Course is a unit of content, optionally bound to a program slot.
//
// Unlock lifecycle: Unscheduled (unlock_date null) -> Scheduled (unlock_date
// set, is_published false) -> Unlocked (is_published true). Unlocked is
// terminal; the scheduler never re-locks a published course.
type Course struct {
	ID                   string     `db:"id" json:"id"`
	Title                string     `db:"title" json:"title"`
	Description          string     `db:"description" json:"description"`
	ProgramID            *string    `db:"program_id" json:"program_id,omitempty"`
	ProgramMonth         *int       `db:"program_month" json:"program_month,omitempty"`
	PrerequisiteCourseID *string    `db:"prerequisite_course_id" json:"prerequisite_course_id,omitempty"`
	IsPublished          bool       `db:"is_published" json:"is_published"`
	UnlockDate           *time.Time `db:"unlock_date" json:"unlock_date,omitempty"`
	CreatedBy            string     `db:"created_by" json:"created_by"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	ProgramID   string
	Published   *bool
	Search      string
	Page        int
	PageSize    int
}

// CourseMonth pairs a course with its 1-indexed month offset in a program.
type CourseMonth struct {
	CourseID string `json:"course_id" validate:"required"`
	Month    int    `json:"month" validate:"required,min=1"`
}

// ScheduledUnlock echoes one computed unlock entry back to the caller.
type ScheduledUnlock struct {
	CourseID   string    `json:"course_id"`
	Month      int       `json:"month"`
	UnlockDate time.Time `json:"unlock_date"`
}

// UnlockedCourse reports one course published by an unlock scan.
type UnlockedCourse struct {
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Unlocked bool   `json:"unlocked"`
}
