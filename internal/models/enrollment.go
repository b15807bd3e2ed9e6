package models

import "time"

// EnrollmentStatus represents the lifecycle of a program enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Only ACTIVE enrollments are read by the
// unlock scheduler.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// ProgramEnrollment ties one user to one technical program. Unique per
// (user_id, program_id); never mutated by the scheduler.
type ProgramEnrollment struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	ProgramID       string           `db:"program_id" json:"program_id"`
	StartDate       time.Time        `db:"start_date" json:"start_date"`
	ExpectedEndDate time.Time        `db:"expected_end_date" json:"expected_end_date"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	CompletedAt     *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches an enrollment with user and program info.
type EnrollmentDetail struct {
	ProgramEnrollment
	UserName     string `db:"user_name" json:"user_name"`
	UserEmail    string `db:"user_email" json:"user_email"`
	ProgramTitle string `db:"program_title" json:"program_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	ProgramID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
