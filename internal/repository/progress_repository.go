package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/lms-api/internal/models"
)

// ProgressRepository handles persistence of chapter progress.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert inserts or updates a student's progress on a chapter.
func (r *ProgressRepository) Upsert(ctx context.Context, progress *models.ChapterProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	progress.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO chapter_progress (id, user_id, chapter_id, watched_seconds, is_completed, completed_at, updated_at)
        VALUES (:id, :user_id, :chapter_id, :watched_seconds, :is_completed, :completed_at, :updated_at)
        ON CONFLICT (user_id, chapter_id) DO UPDATE SET
        watched_seconds = EXCLUDED.watched_seconds,
        is_completed = EXCLUDED.is_completed,
        completed_at = EXCLUDED.completed_at,
        updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("upsert chapter progress: %w", err)
	}
	return nil
}

// FindByUserAndChapter returns a student's progress on one chapter.
func (r *ProgressRepository) FindByUserAndChapter(ctx context.Context, userID, chapterID string) (*models.ChapterProgress, error) {
	const query = `SELECT id, user_id, chapter_id, watched_seconds, is_completed, completed_at, updated_at
        FROM chapter_progress WHERE user_id = $1 AND chapter_id = $2`
	var progress models.ChapterProgress
	if err := r.db.GetContext(ctx, &progress, query, userID, chapterID); err != nil {
		return nil, err
	}
	return &progress, nil
}

// CountCompletedByCourse returns how many chapters of a course the user has
// completed.
func (r *ProgressRepository) CountCompletedByCourse(ctx context.Context, userID, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM chapter_progress cp
        JOIN chapters c ON c.id = cp.chapter_id
        WHERE cp.user_id = $1 AND c.course_id = $2 AND cp.is_completed = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, courseID); err != nil {
		return 0, fmt.Errorf("count completed chapters: %w", err)
	}
	return count, nil
}
