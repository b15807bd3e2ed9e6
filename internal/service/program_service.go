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

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.TechnicalProgram, int, error)
	FindByID(ctx context.Context, id string) (*models.TechnicalProgram, error)
	Create(ctx context.Context, program *models.TechnicalProgram) error
	Update(ctx context.Context, program *models.TechnicalProgram) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const catalogCacheKeyPrefix = "catalog:programs"

// CreateProgramRequest describes program creation payload.
type CreateProgramRequest struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	DurationMonths int    `json:"duration_months" validate:"required,min=1"`
}

// UpdateProgramRequest describes program update payload.
type UpdateProgramRequest struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	DurationMonths int    `json:"duration_months" validate:"required,min=1"`
}

// ProgramService handles technical program workflows. The public catalog
// listing is served through Redis when caching is enabled.
type ProgramService struct {
	repo      programRepository
	courses   programCourseReader
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService. The cache is optional.
func NewProgramService(repo programRepository, courses programCourseReader, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, courses: courses, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

type cachedCatalogPage struct {
	Programs []models.TechnicalProgram `json:"programs"`
	Total    int                       `json:"total"`
}

// List returns programs with pagination metadata, consulting the catalog
// cache for unfiltered pages.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.TechnicalProgram, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	cacheKey := ""
	if s.cache != nil && filter.Search == "" {
		cacheKey = fmt.Sprintf("%s:%d:%d", catalogCacheKeyPrefix, page, size)
		var cached cachedCatalogPage
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached.Programs, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		}
	}

	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, cachedCatalogPage{Programs: programs, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache program catalog page", zap.Error(err))
		}
	}

	return programs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a program enriched with its ordered courses.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.ProgramDetail, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	courses, err := s.courses.ListByProgram(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program courses")
	}
	return &models.ProgramDetail{TechnicalProgram: *program, Courses: courses}, nil
}

// Create persists a new program.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.TechnicalProgram, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program := &models.TechnicalProgram{
		Title:          req.Title,
		Description:    req.Description,
		DurationMonths: req.DurationMonths,
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	s.invalidateCatalog(ctx)
	return program, nil
}

// Update rewrites a program's mutable fields.
func (s *ProgramService) Update(ctx context.Context, id string, req UpdateProgramRequest) (*models.TechnicalProgram, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	program.Title = req.Title
	program.Description = req.Description
	program.DurationMonths = req.DurationMonths
	if err := s.repo.Update(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	s.invalidateCatalog(ctx)
	return program, nil
}

func (s *ProgramService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCacheKeyPrefix+":*"); err != nil {
		s.logger.Warn("failed to invalidate program catalog cache", zap.Error(err))
	}
}
