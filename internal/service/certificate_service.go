package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
	"github.com/edukita/lms-api/pkg/export"
)

type certificateEnrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

// CertificateService renders completion certificates for finished program
// enrollments.
type CertificateService struct {
	enrollments certificateEnrollmentReader
	renderer    certificateRenderer
	issuer      string
	logger      *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(enrollments certificateEnrollmentReader, renderer certificateRenderer, issuer string, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{enrollments: enrollments, renderer: renderer, issuer: issuer, logger: logger}
}

// Render produces a certificate PDF for a completed enrollment. The caller
// must be the enrolled user or staff; the handler enforces that.
func (s *CertificateService) Render(ctx context.Context, enrollmentID string) ([]byte, string, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.Status != models.EnrollmentStatusCompleted {
		return nil, "", appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate is only available for completed enrollments")
	}

	cert := export.Certificate{
		StudentName:  detail.UserName,
		ProgramTitle: detail.ProgramTitle,
		Issuer:       s.issuer,
		SerialNumber: serialNumber(detail.ID),
	}
	if detail.CompletedAt != nil {
		cert.CompletedAt = *detail.CompletedAt
	}

	data, err := s.renderer.Render(cert)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	filename := fmt.Sprintf("certificate-%s.pdf", slugify(detail.ProgramTitle))
	return data, filename, nil
}

// serialNumber derives a stable serial from the enrollment ID so re-rendered
// certificates carry the same number.
func serialNumber(enrollmentID string) string {
	id, err := uuid.Parse(enrollmentID)
	if err != nil {
		return strings.ToUpper(enrollmentID)
	}
	raw := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("CERT-%s-%s", raw[:8], raw[24:])
}

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "program"
	}
	return slug
}
