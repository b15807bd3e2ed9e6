package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edukita/lms-api/internal/dto"
	"github.com/edukita/lms-api/internal/models"
	"github.com/edukita/lms-api/internal/service"
	appErrors "github.com/edukita/lms-api/pkg/errors"
	"github.com/edukita/lms-api/pkg/response"
)

// UnlockHandler exposes the unlock scheduler over HTTP: the cron trigger
// endpoint and the admin manual override.
type UnlockHandler struct {
	service    *service.UnlockService
	cronSecret string
}

// NewUnlockHandler creates a new handler.
func NewUnlockHandler(svc *service.UnlockService, cronSecret string) *UnlockHandler {
	return &UnlockHandler{service: svc, cronSecret: cronSecret}
}

// CronCheck godoc
// @Summary Run the daily unlock scan
// @Description Publishes every course whose unlock date has arrived and whose prerequisite is met. Intended for external cron schedulers.
// @Tags Unlock
// @Produce json
// @Security CronSecret
// @Success 200 {object} dto.UnlockCheckResponse
// @Failure 401 {object} dto.UnlockCheckErrorResponse
// @Failure 503 {object} dto.UnlockCheckErrorResponse
// @Router /cron/unlock-check [get]
func (h *UnlockHandler) CronCheck(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, dto.UnlockCheckErrorResponse{
			Success:   false,
			Error:     "unauthorized",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	unlocked, err := h.service.DailyUnlockCheck(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.UnlockCheckErrorResponse{
			Success:   false,
			Error:     "unlock check failed",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	message := "No courses to unlock"
	if len(unlocked) > 0 {
		message = "Unlock check completed"
	}
	if unlocked == nil {
		unlocked = []models.UnlockedCourse{}
	}

	c.JSON(http.StatusOK, dto.UnlockCheckResponse{
		Success:         true,
		Timestamp:       time.Now().UTC(),
		CoursesUnlocked: len(unlocked),
		Details:         unlocked,
		Message:         message,
	})
}

// ManualUnlock godoc
// @Summary Manually unlock a course
// @Description Runs an unlock scan for the named course, or publishes it unconditionally with force.
// @Tags Unlock
// @Accept json
// @Produce json
// @Param payload body dto.ManualUnlockRequest true "Unlock payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/unlock [post]
func (h *UnlockHandler) ManualUnlock(c *gin.Context) {
	var req dto.ManualUnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid unlock payload"))
		return
	}

	res, err := h.service.ManualUnlock(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// authorized checks the cron bearer secret. An empty configured secret
// disables the endpoint rather than leaving it open.
func (h *UnlockHandler) authorized(c *gin.Context) bool {
	if h.cronSecret == "" {
		return false
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.cronSecret)) == 1
}
