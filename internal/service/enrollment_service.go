package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ProgramEnrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, userID, programID string) (bool, error)
	Create(ctx context.Context, enrollment *models.ProgramEnrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completedAt *time.Time) error
}

type programReader interface {
	FindByID(ctx context.Context, id string) (*models.TechnicalProgram, error)
}

type programCourseReader interface {
	ListByProgram(ctx context.Context, programID string) ([]models.Course, error)
}

type enrollmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type unlockScheduler interface {
	ScheduleProgramUnlocks(ctx context.Context, programID string, startDate time.Time, courses []models.CourseMonth) ([]models.ScheduledUnlock, error)
}

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// EnrollProgramRequest describes enrollment creation payload.
type EnrollProgramRequest struct {
	UserID    string     `json:"user_id" validate:"required"`
	ProgramID string     `json:"program_id" validate:"required"`
	StartDate *time.Time `json:"start_date"`
}

// EnrollmentService orchestrates program enrollment workflows, including
// seeding the unlock schedule for the enrolled program.
type EnrollmentService struct {
	repo          enrollmentRepository
	programs      programReader
	courses       programCourseReader
	users         enrollmentUserReader
	scheduler     unlockScheduler
	notifications notificationWriter
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, programs programReader, courses programCourseReader, users enrollmentUserReader, scheduler unlockScheduler, notifications notificationWriter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:          repo,
		programs:      programs,
		courses:       courses,
		users:         users,
		scheduler:     scheduler,
		notifications: notifications,
		validator:     validate,
		logger:        logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Get returns one enrollment with user and program info.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll registers a user to a program, seeds the program's unlock schedule
// from the start date, and raises a welcome notification.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollProgramRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user account inactive")
	}

	program, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	exists, err := s.repo.Exists(ctx, req.UserID, req.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already enrolled in program")
	}

	startDate := time.Now().UTC()
	if req.StartDate != nil {
		startDate = req.StartDate.UTC()
	}

	enrollment := &models.ProgramEnrollment{
		UserID:          req.UserID,
		ProgramID:       req.ProgramID,
		StartDate:       startDate,
		ExpectedEndDate: startDate.AddDate(0, program.DurationMonths, 0),
		Status:          models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	// Seed the unlock schedule exactly once, from this enrollment's start
	// date. Scheduling overwrites prior dates unconditionally, which is why
	// it never runs again for this enrollment.
	courses, err := s.courses.ListByProgram(ctx, req.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program courses")
	}
	courseMonths := make([]models.CourseMonth, 0, len(courses))
	for _, course := range courses {
		if course.ProgramMonth == nil {
			continue
		}
		courseMonths = append(courseMonths, models.CourseMonth{CourseID: course.ID, Month: *course.ProgramMonth})
	}
	if _, err := s.scheduler.ScheduleProgramUnlocks(ctx, req.ProgramID, startDate, courseMonths); err != nil {
		return nil, err
	}

	welcome := &models.Notification{
		UserID:           req.UserID,
		Title:            "Welcome to your program",
		Message:          fmt.Sprintf("You are enrolled in %q. Your first course is available now.", program.Title),
		Type:             models.NotificationTypeProgramEnrollment,
		RelatedProgramID: &program.ID,
	}
	if err := s.notifications.Create(ctx, welcome); err != nil {
		s.logger.Warn("failed to create welcome notification", zap.Error(err), zap.String("enrollment_id", enrollment.ID))
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Withdraw marks an active enrollment as withdrawn.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, id, models.EnrollmentStatusWithdrawn, nil)
}

// Complete marks an active enrollment as completed, which unlocks the
// completion certificate.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, models.EnrollmentStatusCompleted, &now)
}

func (s *EnrollmentService) transition(ctx context.Context, id string, status models.EnrollmentStatus, completedAt *time.Time) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment not active")
	}
	if err := s.repo.UpdateStatus(ctx, id, status, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}
