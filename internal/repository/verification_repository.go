package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edukita/lms-api/internal/models"
)

const verificationColumns = `id, user_id, document_type, document_url, status, reviewer_id, reviewed_at, rejection_reason, created_at`

// VerificationRepository handles persistence of identity verification
// requests.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs the repository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// List returns verification requests filtered by the provided criteria.
func (r *VerificationRepository) List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationRequest, int, error) {
	base := "FROM verification_requests"
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at LIMIT %d OFFSET %d", verificationColumns, base+clause, size, offset)

	var requests []models.VerificationRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list verification requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count verification requests: %w", err)
	}
	return requests, total, nil
}

// FindByID returns a verification request by its ID.
func (r *VerificationRepository) FindByID(ctx context.Context, id string) (*models.VerificationRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM verification_requests WHERE id = $1", verificationColumns)
	var request models.VerificationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasPending reports whether the user already has an open request.
func (r *VerificationRepository) HasPending(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT 1 FROM verification_requests WHERE user_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, models.VerificationStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending verification: %w", err)
	}
	return true, nil
}

// Create persists a new verification request.
func (r *VerificationRepository) Create(ctx context.Context, request *models.VerificationRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.VerificationStatusPending
	}
	const query = `INSERT INTO verification_requests (id, user_id, document_type, document_url, status, reviewer_id, reviewed_at, rejection_reason, created_at)
        VALUES (:id, :user_id, :document_type, :document_url, :status, :reviewer_id, :reviewed_at, :rejection_reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create verification request: %w", err)
	}
	return nil
}

// Review records the outcome of a staff review.
func (r *VerificationRepository) Review(ctx context.Context, id string, status models.VerificationStatus, reviewerID string, reason *string) error {
	const query = `UPDATE verification_requests SET status = $2, reviewer_id = $3, reviewed_at = $4, rejection_reason = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewerID, time.Now().UTC(), reason); err != nil {
		return fmt.Errorf("review verification request: %w", err)
	}
	return nil
}
