package models

import "time"

// Chapter is a playable unit inside a course. Video bytes live with the
// external video provider; we only hold the playback URL.
type Chapter struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	Title           string    `db:"title" json:"title"`
	Position        int       `db:"position" json:"position"`
	VideoURL        string    `db:"video_url" json:"video_url"`
	DurationSeconds int       `db:"duration_seconds" json:"duration_seconds"`
	IsFree          bool      `db:"is_free" json:"is_free"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
