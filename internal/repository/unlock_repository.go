package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/lms-api/internal/models"
)

// UnlockRepository owns the scheduler's writes: Course.unlock_date,
// Course.is_published and Notification inserts driven by unlock events.
type UnlockRepository struct {
	db *sqlx.DB
}

// NewUnlockRepository constructs the repository.
func NewUnlockRepository(db *sqlx.DB) *UnlockRepository {
	return &UnlockRepository{db: db}
}

// FindCourse returns a course by ID.
func (r *UnlockRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, program_id, program_month, prerequisite_course_id,
        is_published, unlock_date, created_by, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// SetUnlockSchedule writes the computed unlock date onto a course row. The
// entry-month course is published immediately; all others are locked until
// the scan reaches them.
func (r *UnlockRepository) SetUnlockSchedule(ctx context.Context, courseID string, unlockDate time.Time, published bool) error {
	const query = `UPDATE courses SET unlock_date = $2, is_published = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, courseID, unlockDate, published, time.Now().UTC()); err != nil {
		return fmt.Errorf("set unlock schedule: %w", err)
	}
	return nil
}

// ListUnlockCandidates returns unpublished program courses whose unlock date
// has passed.
func (r *UnlockRepository) ListUnlockCandidates(ctx context.Context, now time.Time) ([]models.Course, error) {
	const query = `SELECT id, title, description, program_id, program_month, prerequisite_course_id,
        is_published, unlock_date, created_by, created_at, updated_at
        FROM courses
        WHERE unlock_date IS NOT NULL AND unlock_date <= $1 AND is_published = false AND program_id IS NOT NULL
        ORDER BY unlock_date, program_month`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, now); err != nil {
		return nil, fmt.Errorf("list unlock candidates: %w", err)
	}
	return courses, nil
}

// PublishAndNotify publishes one course and inserts its unlock notifications
// inside a single transaction, so a course is never published without its
// notifications (and vice versa).
func (r *UnlockRepository) PublishAndNotify(ctx context.Context, courseID string, notifications []models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unlock tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const publish = `UPDATE courses SET is_published = true, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, publish, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("publish course %s: %w", courseID, err)
	}

	const insert = `INSERT INTO notifications (id, user_id, title, message, type, related_course_id, related_program_id, is_read, created_at)
        VALUES (:id, :user_id, :title, :message, :type, :related_course_id, :related_program_id, :is_read, :created_at)`
	for i := range notifications {
		n := &notifications[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insert, n); err != nil {
			return fmt.Errorf("insert unlock notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unlock tx: %w", err)
	}
	return nil
}

// ForcePublish sets is_published unconditionally. Operator escape hatch; no
// date or prerequisite checks and no notifications.
func (r *UnlockRepository) ForcePublish(ctx context.Context, courseID string) error {
	const query = `UPDATE courses SET is_published = true, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("force publish course %s: %w", courseID, err)
	}
	return nil
}
