package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByProgram(ctx context.Context, programID string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	AssignToProgram(ctx context.Context, courseID, programID string, month int, prerequisiteID *string) error
	SetPublished(ctx context.Context, courseID string, published bool) error
}

type chapterRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Chapter, error)
	FindByID(ctx context.Context, id string) (*models.Chapter, error)
	Create(ctx context.Context, chapter *models.Chapter) error
	Update(ctx context.Context, chapter *models.Chapter) error
	Delete(ctx context.Context, id string) error
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// UpdateCourseRequest describes course update payload.
type UpdateCourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// AssignCourseRequest binds a course into a program slot.
type AssignCourseRequest struct {
	ProgramID            string  `json:"program_id" validate:"required"`
	Month                int     `json:"month" validate:"required,min=1"`
	PrerequisiteCourseID *string `json:"prerequisite_course_id"`
}

// CreateChapterRequest describes chapter creation payload.
type CreateChapterRequest struct {
	Title           string `json:"title" validate:"required"`
	Position        int    `json:"position" validate:"min=0"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
	IsFree          bool   `json:"is_free"`
}

// CourseService handles course authoring workflows. Scheduled publication is
// owned by the unlock engine; this service only allows manual publication
// flips on courses that are not under schedule control.
type CourseService struct {
	repo      courseRepository
	chapters  chapterRepository
	programs  programReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, chapters chapterRepository, programs programReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, chapters: chapters, programs: programs, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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
	return courses, pagination, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create persists a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest, creatorID string) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   creatorID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update rewrites a course's mutable fields.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Title = req.Title
	course.Description = req.Description
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// AssignToProgram binds a course into a program slot with an optional
// prerequisite. The prerequisite must belong to the same program.
func (s *CourseService) AssignToProgram(ctx context.Context, courseID string, req AssignCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if req.PrerequisiteCourseID != nil {
		if *req.PrerequisiteCourseID == courseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course cannot be its own prerequisite")
		}
		prereq, err := s.repo.FindByID(ctx, *req.PrerequisiteCourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite course")
		}
		if prereq.ProgramID == nil || *prereq.ProgramID != req.ProgramID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "prerequisite must belong to the same program")
		}
	}
	if err := s.repo.AssignToProgram(ctx, courseID, req.ProgramID, req.Month, req.PrerequisiteCourseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign course")
	}
	return s.Get(ctx, courseID)
}

// SetPublished manually flips publication on a course that is not under
// schedule control. Courses with an unlock date are owned by the scheduler;
// use the admin unlock override for those.
func (s *CourseService) SetPublished(ctx context.Context, id string, published bool) (*models.Course, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.UnlockDate != nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is under schedule control")
	}
	if course.IsPublished && published {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPublished, "")
	}
	if err := s.repo.SetPublished(ctx, id, published); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course publication")
	}
	course.IsPublished = published
	return course, nil
}

// ListChapters returns a course's chapters in playback order.
func (s *CourseService) ListChapters(ctx context.Context, courseID string) ([]models.Chapter, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	chapters, err := s.chapters.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chapters")
	}
	return chapters, nil
}

// AddChapter appends a chapter to a course.
func (s *CourseService) AddChapter(ctx context.Context, courseID string, req CreateChapterRequest) (*models.Chapter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chapter payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	chapter := &models.Chapter{
		CourseID:        courseID,
		Title:           req.Title,
		Position:        req.Position,
		VideoURL:        req.VideoURL,
		DurationSeconds: req.DurationSeconds,
		IsFree:          req.IsFree,
	}
	if err := s.chapters.Create(ctx, chapter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chapter")
	}
	return chapter, nil
}

// RemoveChapter deletes a chapter from a course.
func (s *CourseService) RemoveChapter(ctx context.Context, chapterID string) error {
	if _, err := s.chapters.FindByID(ctx, chapterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}
	if err := s.chapters.Delete(ctx, chapterID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete chapter")
	}
	return nil
}
