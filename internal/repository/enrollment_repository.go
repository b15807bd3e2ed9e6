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

// EnrollmentRepository handles persistence of program enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM program_enrollments e
LEFT JOIN users u ON u.id = e.user_id
LEFT JOIN technical_programs p ON p.id = e.program_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("e.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date":    "e.start_date",
		"user_name":     "u.full_name",
		"program_title": "p.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_date"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.user_id, e.program_id, e.start_date, e.expected_end_date, e.status, e.completed_at, e.created_at,
        u.full_name AS user_name, u.email AS user_email, p.title AS program_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.ProgramEnrollment, error) {
	const query = `SELECT id, user_id, program_id, start_date, expected_end_date, status, completed_at, created_at
        FROM program_enrollments WHERE id = $1`
	var enrollment models.ProgramEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with user and program info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.user_id, e.program_id, e.start_date, e.expected_end_date, e.status, e.completed_at, e.created_at,
        u.full_name AS user_name, u.email AS user_email, p.title AS program_title
        FROM program_enrollments e
        LEFT JOIN users u ON u.id = e.user_id
        LEFT JOIN technical_programs p ON p.id = e.program_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists checks if an enrollment exists for the (user, program) pair in any
// status. A withdrawn enrollment still blocks re-enrollment.
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, programID string) (bool, error) {
	const query = `SELECT 1 FROM program_enrollments WHERE user_id = $1 AND program_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, programID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.ProgramEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO program_enrollments (id, user_id, program_id, start_date, expected_end_date, status, completed_at, created_at)
        VALUES (:id, :user_id, :program_id, :start_date, :expected_end_date, :status, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates status and completed_at for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, completedAt *time.Time) error {
	const query = `UPDATE program_enrollments SET status = $2, completed_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListActiveByProgram returns active enrollments for a program, with user
// contact info for notification fanout.
func (r *EnrollmentRepository) ListActiveByProgram(ctx context.Context, programID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.user_id, e.program_id, e.start_date, e.expected_end_date, e.status, e.completed_at, e.created_at,
        u.full_name AS user_name, u.email AS user_email, p.title AS program_title
        FROM program_enrollments e
        LEFT JOIN users u ON u.id = e.user_id
        LEFT JOIN technical_programs p ON p.id = e.program_id
        WHERE e.program_id = $1 AND e.status = $2`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, programID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}
