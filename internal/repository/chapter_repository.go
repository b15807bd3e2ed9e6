package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/lms-api/internal/models"
)

// ChapterRepository handles persistence of course chapters.
type ChapterRepository struct {
	db *sqlx.DB
}

// NewChapterRepository constructs the repository.
func NewChapterRepository(db *sqlx.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// ListByCourse returns a course's chapters in playback order.
func (r *ChapterRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Chapter, error) {
	const query = `SELECT id, course_id, title, position, video_url, duration_seconds, is_free, created_at, updated_at
        FROM chapters WHERE course_id = $1 ORDER BY position`
	var chapters []models.Chapter
	if err := r.db.SelectContext(ctx, &chapters, query, courseID); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

// FindByID returns a chapter by its ID.
func (r *ChapterRepository) FindByID(ctx context.Context, id string) (*models.Chapter, error) {
	const query = `SELECT id, course_id, title, position, video_url, duration_seconds, is_free, created_at, updated_at
        FROM chapters WHERE id = $1`
	var chapter models.Chapter
	if err := r.db.GetContext(ctx, &chapter, query, id); err != nil {
		return nil, err
	}
	return &chapter, nil
}

// Create persists a new chapter record.
func (r *ChapterRepository) Create(ctx context.Context, chapter *models.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if chapter.CreatedAt.IsZero() {
		chapter.CreatedAt = now
	}
	chapter.UpdatedAt = now
	const query = `INSERT INTO chapters (id, course_id, title, position, video_url, duration_seconds, is_free, created_at, updated_at)
        VALUES (:id, :course_id, :title, :position, :video_url, :duration_seconds, :is_free, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, chapter); err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a chapter.
func (r *ChapterRepository) Update(ctx context.Context, chapter *models.Chapter) error {
	chapter.UpdatedAt = time.Now().UTC()
	const query = `UPDATE chapters SET title = :title, position = :position, video_url = :video_url,
        duration_seconds = :duration_seconds, is_free = :is_free, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, chapter); err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return nil
}

// Delete removes a chapter.
func (r *ChapterRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM chapters WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return nil
}

// CountByCourse returns the number of chapters in a course.
func (r *ChapterRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM chapters WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count chapters: %w", err)
	}
	return count, nil
}
