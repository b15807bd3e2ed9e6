package dto

import (
	"time"

	"github.com/edukita/lms-api/internal/models"
)

// UnlockCheckResponse is the payload returned by the cron trigger endpoint.
type UnlockCheckResponse struct {
	Success         bool                    `json:"success"`
	Timestamp       time.Time               `json:"timestamp"`
	CoursesUnlocked int                     `json:"coursesUnlocked"`
	Details         []models.UnlockedCourse `json:"details"`
	Message         string                  `json:"message"`
}

// UnlockCheckErrorResponse is returned when an unlock scan fails.
type UnlockCheckErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ManualUnlockRequest is the admin override payload. With Force set the
// course is published unconditionally; otherwise a normal scan runs and the
// response reports whether the named course was among those unlocked.
type ManualUnlockRequest struct {
	CourseID string `json:"courseId" validate:"required"`
	Force    bool   `json:"force"`
}

// ManualUnlockResponse reports the outcome of a manual unlock action.
type ManualUnlockResponse struct {
	CourseID string                  `json:"courseId"`
	Unlocked bool                    `json:"unlocked"`
	Forced   bool                    `json:"forced"`
	Details  []models.UnlockedCourse `json:"details,omitempty"`
}
