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

type verificationRepository interface {
	List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.VerificationRequest, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, request *models.VerificationRequest) error
	Review(ctx context.Context, id string, status models.VerificationStatus, reviewerID string, reason *string) error
}

type userVerifier interface {
	SetVerified(ctx context.Context, id string, verified bool) error
}

type documentSigner interface {
	Generate(requestID, documentURL string) (string, time.Time, error)
}

// SubmitVerificationRequest describes a document submission. The document
// itself is already in external object storage; only its URL is recorded.
type SubmitVerificationRequest struct {
	DocumentType string `json:"document_type" validate:"required,oneof=ID_CARD PASSPORT DRIVER_LICENSE"`
	DocumentURL  string `json:"document_url" validate:"required,url"`
}

// ReviewVerificationRequest describes a staff review decision.
type ReviewVerificationRequest struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason"`
}

// DocumentAccess is a short-lived signed reference to a stored document.
type DocumentAccess struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationService handles document-based identity verification.
type VerificationService struct {
	repo          verificationRepository
	users         userVerifier
	signer        documentSigner
	notifications notificationWriter
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewVerificationService constructs VerificationService.
func NewVerificationService(repo verificationRepository, users userVerifier, signer documentSigner, notifications notificationWriter, validate *validator.Validate, logger *zap.Logger) *VerificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{repo: repo, users: users, signer: signer, notifications: notifications, validator: validate, logger: logger}
}

// List returns verification requests with pagination metadata.
func (s *VerificationService) List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verification requests")
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
	return requests, pagination, nil
}

// Submit records a new pending verification request. One open request per
// user at a time.
func (s *VerificationService) Submit(ctx context.Context, userID string, req SubmitVerificationRequest) (*models.VerificationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	pending, err := s.repo.HasPending(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a verification request is already pending")
	}
	request := &models.VerificationRequest{
		UserID:       userID,
		DocumentType: req.DocumentType,
		DocumentURL:  req.DocumentURL,
		Status:       models.VerificationStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create verification request")
	}
	return request, nil
}

// Review records a staff decision, flips the user's verified flag on
// approval, and notifies the requester.
func (s *VerificationService) Review(ctx context.Context, id, reviewerID string, req ReviewVerificationRequest) (*models.VerificationRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification request")
	}
	if request.Status != models.VerificationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "verification request already reviewed")
	}

	status := models.VerificationStatusRejected
	if req.Approve {
		status = models.VerificationStatusApproved
	} else if req.Reason == nil || *req.Reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}

	if err := s.repo.Review(ctx, id, status, reviewerID, req.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	if req.Approve {
		if err := s.users.SetVerified(ctx, request.UserID, true); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark user verified")
		}
	}

	message := "Your identity has been verified."
	if !req.Approve {
		message = fmt.Sprintf("Your verification was rejected: %s", *req.Reason)
	}
	notification := &models.Notification{
		UserID:  request.UserID,
		Title:   "Identity verification result",
		Message: message,
		Type:    models.NotificationTypeVerificationResult,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to create verification notification", zap.Error(err), zap.String("request_id", id))
	}

	return s.repo.FindByID(ctx, id)
}

// DocumentAccess issues a short-lived signed token for the stored document.
// Only the requester or staff may obtain one; the handler enforces that.
func (s *VerificationService) DocumentAccess(ctx context.Context, id string) (*DocumentAccess, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification request")
	}
	token, expiresAt, err := s.signer.Generate(request.ID, request.DocumentURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document access")
	}
	return &DocumentAccess{Token: token, ExpiresAt: expiresAt}, nil
}

// FindByID returns a verification request by ID.
func (s *VerificationService) FindByID(ctx context.Context, id string) (*models.VerificationRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification request")
	}
	return request, nil
}
