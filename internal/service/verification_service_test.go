package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
)

type mockVerificationRepo struct {
	requests map[string]models.VerificationRequest
	pending  map[string]bool
}

func newMockVerificationRepo() *mockVerificationRepo {
	return &mockVerificationRepo{
		requests: make(map[string]models.VerificationRequest),
		pending:  make(map[string]bool),
	}
}

func (m *mockVerificationRepo) List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationRequest, int, error) {
	return nil, 0, nil
}

func (m *mockVerificationRepo) FindByID(ctx context.Context, id string) (*models.VerificationRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVerificationRepo) HasPending(ctx context.Context, userID string) (bool, error) {
	return m.pending[userID], nil
}

func (m *mockVerificationRepo) Create(ctx context.Context, request *models.VerificationRequest) error {
	if request.ID == "" {
		request.ID = "req-1"
	}
	m.requests[request.ID] = *request
	m.pending[request.UserID] = true
	return nil
}

func (m *mockVerificationRepo) Review(ctx context.Context, id string, status models.VerificationStatus, reviewerID string, reason *string) error {
	r := m.requests[id]
	now := time.Now().UTC()
	r.Status = status
	r.ReviewerID = &reviewerID
	r.ReviewedAt = &now
	r.RejectionReason = reason
	m.requests[id] = r
	m.pending[r.UserID] = false
	return nil
}

type mockUserVerifier struct {
	verified map[string]bool
}

func (m *mockUserVerifier) SetVerified(ctx context.Context, id string, verified bool) error {
	if m.verified == nil {
		m.verified = make(map[string]bool)
	}
	m.verified[id] = verified
	return nil
}

type mockDocumentSigner struct {
	calls int
}

func (m *mockDocumentSigner) Generate(requestID, documentURL string) (string, time.Time, error) {
	m.calls++
	return "signed-" + requestID, time.Now().Add(15 * time.Minute), nil
}

func newVerificationFixture() (*VerificationService, *mockVerificationRepo, *mockUserVerifier, *mockNotificationWriter) {
	repo := newMockVerificationRepo()
	users := &mockUserVerifier{}
	notify := &mockNotificationWriter{}
	svc := NewVerificationService(repo, users, &mockDocumentSigner{}, notify, nil, nil)
	return svc, repo, users, notify
}

func TestSubmitVerificationRequest(t *testing.T) {
	svc, repo, _, _ := newVerificationFixture()

	request, err := svc.Submit(context.Background(), "u1", SubmitVerificationRequest{
		DocumentType: "ID_CARD",
		DocumentURL:  "https://storage.example.com/docs/u1.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusPending, request.Status)
	assert.True(t, repo.pending["u1"])
}

func TestSubmitRejectsSecondPendingRequest(t *testing.T) {
	svc, repo, _, _ := newVerificationFixture()
	repo.pending["u1"] = true

	_, err := svc.Submit(context.Background(), "u1", SubmitVerificationRequest{
		DocumentType: "PASSPORT",
		DocumentURL:  "https://storage.example.com/docs/u1-2.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitRejectsUnknownDocumentType(t *testing.T) {
	svc, _, _, _ := newVerificationFixture()

	_, err := svc.Submit(context.Background(), "u1", SubmitVerificationRequest{
		DocumentType: "SELFIE",
		DocumentURL:  "https://storage.example.com/docs/u1.jpg",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReviewApprovalMarksUserVerified(t *testing.T) {
	svc, repo, users, notify := newVerificationFixture()
	repo.requests["req-1"] = models.VerificationRequest{
		ID:     "req-1",
		UserID: "u1",
		Status: models.VerificationStatusPending,
	}

	reviewed, err := svc.Review(context.Background(), "req-1", "staff-1", ReviewVerificationRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewerID)
	assert.Equal(t, "staff-1", *reviewed.ReviewerID)
	assert.True(t, users.verified["u1"])

	require.Len(t, notify.created, 1)
	assert.Equal(t, models.NotificationTypeVerificationResult, notify.created[0].Type)
	assert.Equal(t, "u1", notify.created[0].UserID)
}

func TestReviewRejectionRequiresReason(t *testing.T) {
	svc, repo, users, _ := newVerificationFixture()
	repo.requests["req-1"] = models.VerificationRequest{
		ID:     "req-1",
		UserID: "u1",
		Status: models.VerificationStatusPending,
	}

	_, err := svc.Review(context.Background(), "req-1", "staff-1", ReviewVerificationRequest{Approve: false})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, users.verified)
}

func TestReviewRejectionWithReason(t *testing.T) {
	svc, repo, users, notify := newVerificationFixture()
	repo.requests["req-1"] = models.VerificationRequest{
		ID:     "req-1",
		UserID: "u1",
		Status: models.VerificationStatusPending,
	}

	reviewed, err := svc.Review(context.Background(), "req-1", "staff-1", ReviewVerificationRequest{
		Approve: false,
		Reason:  strPtr("document unreadable"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusRejected, reviewed.Status)
	require.NotNil(t, reviewed.RejectionReason)
	assert.Equal(t, "document unreadable", *reviewed.RejectionReason)
	assert.Empty(t, users.verified)
	require.Len(t, notify.created, 1)
	assert.Contains(t, notify.created[0].Message, "document unreadable")
}

func TestReviewAlreadyReviewed(t *testing.T) {
	svc, repo, _, _ := newVerificationFixture()
	repo.requests["req-1"] = models.VerificationRequest{
		ID:     "req-1",
		UserID: "u1",
		Status: models.VerificationStatusApproved,
	}

	_, err := svc.Review(context.Background(), "req-1", "staff-1", ReviewVerificationRequest{Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestDocumentAccessSignsStoredDocument(t *testing.T) {
	svc, repo, _, _ := newVerificationFixture()
	repo.requests["req-1"] = models.VerificationRequest{
		ID:          "req-1",
		UserID:      "u1",
		DocumentURL: "https://storage.example.com/docs/u1.pdf",
		Status:      models.VerificationStatusPending,
	}

	access, err := svc.DocumentAccess(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "signed-req-1", access.Token)
	assert.True(t, access.ExpiresAt.After(time.Now()))
}

func TestDocumentAccessMissingRequest(t *testing.T) {
	svc, _, _, _ := newVerificationFixture()

	_, err := svc.DocumentAccess(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
