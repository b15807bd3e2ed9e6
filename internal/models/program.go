package models

import "time"

// TechnicalProgram is a named curriculum of ordered courses released on a
// monthly timetable. Programs are created by staff and never deleted while
// enrollments reference them.
type TechnicalProgram struct {
	ID             string    `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	DurationMonths int       `db:"duration_months" json:"duration_months"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramDetail enriches a program with its ordered courses.
type ProgramDetail struct {
	TechnicalProgram
	Courses []Course `json:"courses"`
}

// ProgramFilter provides filters for listing programs.
type ProgramFilter struct {
	Search   string
	Page     int
	PageSize int
}
