package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
)

type progressRepository interface {
	Upsert(ctx context.Context, progress *models.ChapterProgress) error
	FindByUserAndChapter(ctx context.Context, userID, chapterID string) (*models.ChapterProgress, error)
	CountCompletedByCourse(ctx context.Context, userID, courseID string) (int, error)
}

type chapterReader interface {
	FindByID(ctx context.Context, id string) (*models.Chapter, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

// UpdateProgressRequest describes a playback progress report.
type UpdateProgressRequest struct {
	WatchedSeconds int  `json:"watched_seconds" validate:"min=0"`
	Completed      bool `json:"completed"`
}

// ProgressService tracks student chapter progress.
type ProgressService struct {
	repo      progressRepository
	chapters  chapterReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressService constructs ProgressService.
func NewProgressService(repo progressRepository, chapters chapterReader, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{repo: repo, chapters: chapters, validator: validate, logger: logger}
}

// UpdateChapterProgress upserts the user's progress on a chapter. A chapter
// counts as completed when the client says so or when the watched time
// reaches its duration. Completion is sticky: a later partial report never
// un-completes a chapter.
func (s *ProgressService) UpdateChapterProgress(ctx context.Context, userID, chapterID string, req UpdateProgressRequest) (*models.ChapterProgress, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	chapter, err := s.chapters.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}

	progress := &models.ChapterProgress{
		UserID:         userID,
		ChapterID:      chapterID,
		WatchedSeconds: req.WatchedSeconds,
	}
	if existing, err := s.repo.FindByUserAndChapter(ctx, userID, chapterID); err == nil {
		progress.ID = existing.ID
		progress.IsCompleted = existing.IsCompleted
		progress.CompletedAt = existing.CompletedAt
		if existing.WatchedSeconds > progress.WatchedSeconds {
			progress.WatchedSeconds = existing.WatchedSeconds
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	completedNow := req.Completed || (chapter.DurationSeconds > 0 && req.WatchedSeconds >= chapter.DurationSeconds)
	if completedNow && !progress.IsCompleted {
		now := time.Now().UTC()
		progress.IsCompleted = true
		progress.CompletedAt = &now
	}

	if err := s.repo.Upsert(ctx, progress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress")
	}
	return progress, nil
}

// CourseSummary aggregates the user's progress over one course.
func (s *ProgressService) CourseSummary(ctx context.Context, userID, courseID string) (*models.CourseProgressSummary, error) {
	total, err := s.chapters.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count chapters")
	}
	completed, err := s.repo.CountCompletedByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed chapters")
	}
	summary := &models.CourseProgressSummary{
		CourseID:          courseID,
		TotalChapters:     total,
		CompletedChapters: completed,
	}
	if total > 0 {
		summary.CompletionPercent = float64(completed) / float64(total) * 100
	}
	return summary, nil
}
