package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
	"github.com/edukita/lms-api/pkg/jobs"
	"github.com/edukita/lms-api/pkg/mailer"
)

type notificationRepository interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	Create(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

const jobTypeUnlockEmail = "unlock_email"

type unlockEmailPayload struct {
	ToName      string
	ToAddress   string
	CourseTitle string
}

// NotificationService serves in-app notifications and fans unlock email out
// through a background worker queue so unlock scans never block on the mail
// provider.
type NotificationService struct {
	repo   notificationRepository
	mail   mailer.Mailer
	queue  *jobs.Queue
	logger *zap.Logger
}

// NotificationConfig tunes the email worker queue.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo notificationRepository, mail mailer.Mailer, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = mailer.NewLog(logger)
	}
	s := &NotificationService{repo: repo, mail: mail, logger: logger}
	s.queue = jobs.NewQueue("notification-email", s.handleEmailJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// StartWorkers begins email worker consumption.
func (s *NotificationService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains the email workers.
func (s *NotificationService) StopWorkers() {
	s.queue.Stop()
}

// List returns a user's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return notifications, pagination, nil
}

// Create persists a single notification.
func (s *NotificationService) Create(ctx context.Context, notification *models.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return nil
}

// MarkRead flips the read flag on one of the user's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flips the read flag on all of the user's notifications and
// returns how many were affected.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return affected, nil
}

// CountUnread returns the user's unread notification count.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return count, nil
}

// EnqueueCourseUnlock schedules one unlock email per recipient. Delivery
// failures are retried by the queue and never surface to the unlock scan.
func (s *NotificationService) EnqueueCourseUnlock(course models.Course, recipients []models.EnrollmentDetail) {
	for _, recipient := range recipients {
		if recipient.UserEmail == "" {
			continue
		}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: jobTypeUnlockEmail,
			Payload: unlockEmailPayload{
				ToName:      recipient.UserName,
				ToAddress:   recipient.UserEmail,
				CourseTitle: course.Title,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue unlock email", zap.Error(err), zap.String("user_id", recipient.UserID))
		}
	}
}

func (s *NotificationService) handleEmailJob(_ context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(unlockEmailPayload)
	if !ok {
		s.logger.Error("unexpected email job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return s.mail.Send(mailer.Message{
		ToName:    payload.ToName,
		ToAddress: payload.ToAddress,
		Subject:   "New course unlocked",
		Body:      fmt.Sprintf("Good news %s! The course %q is now available in your program.", payload.ToName, payload.CourseTitle),
	})
}
