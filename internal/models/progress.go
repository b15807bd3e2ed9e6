package models

import "time"

// ChapterProgress records a student's progress through one chapter.
// Unique per (user_id, chapter_id).
type ChapterProgress struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	ChapterID      string     `db:"chapter_id" json:"chapter_id"`
	WatchedSeconds int        `db:"watched_seconds" json:"watched_seconds"`
	IsCompleted    bool       `db:"is_completed" json:"is_completed"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseProgressSummary aggregates a student's progress over one course.
type CourseProgressSummary struct {
	CourseID          string  `json:"course_id"`
	TotalChapters     int     `json:"total_chapters"`
	CompletedChapters int     `json:"completed_chapters"`
	CompletionPercent float64 `json:"completion_percent"`
}
