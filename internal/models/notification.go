package models

import "time"

// NotificationType is the closed set of notification variants.
type NotificationType string

const (
	NotificationTypeCourseUnlock       NotificationType = "COURSE_UNLOCK"
	NotificationTypeProgramEnrollment  NotificationType = "PROGRAM_ENROLLMENT"
	NotificationTypeVerificationResult NotificationType = "VERIFICATION_RESULT"
)

// Notification is an in-app message for a single user. Immutable after
// creation except for the read flag.
type Notification struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	Title            string           `db:"title" json:"title"`
	Message          string           `db:"message" json:"message"`
	Type             NotificationType `db:"type" json:"type"`
	RelatedCourseID  *string          `db:"related_course_id" json:"related_course_id,omitempty"`
	RelatedProgramID *string          `db:"related_program_id" json:"related_program_id,omitempty"`
	IsRead           bool             `db:"is_read" json:"is_read"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter provides filters for listing notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
