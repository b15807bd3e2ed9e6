package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edukita/lms-api/internal/service"
	appErrors "github.com/edukita/lms-api/pkg/errors"
	"github.com/edukita/lms-api/pkg/response"
)

// CertificateHandler serves completion certificate downloads.
type CertificateHandler struct {
	certificates *service.CertificateService
	enrollments  *service.EnrollmentService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService, enrollments *service.EnrollmentService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, enrollments: enrollments}
}

// Download godoc
// @Summary Download a completion certificate PDF
// @Description Only available for completed enrollments, to the enrolled user or staff.
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/certificate [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !isStaff(claims) && detail.UserID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	data, filename, err := h.certificates.Render(c.Request.Context(), detail.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
