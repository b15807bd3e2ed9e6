package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/lms-api/internal/dto"
	"github.com/edukita/lms-api/internal/models"
	"github.com/edukita/lms-api/internal/service"
)

type stubUnlockRepo struct {
	courses    map[string]models.Course
	candidates []models.Course
	listErr    error
	forced     []string
}

func (s *stubUnlockRepo) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUnlockRepo) SetUnlockSchedule(ctx context.Context, courseID string, unlockDate time.Time, published bool) error {
	return nil
}

func (s *stubUnlockRepo) ListUnlockCandidates(ctx context.Context, now time.Time) ([]models.Course, error) {
	return s.candidates, s.listErr
}

func (s *stubUnlockRepo) PublishAndNotify(ctx context.Context, courseID string, notifications []models.Notification) error {
	return nil
}

func (s *stubUnlockRepo) ForcePublish(ctx context.Context, courseID string) error {
	s.forced = append(s.forced, courseID)
	return nil
}

type stubEnrollmentReader struct{}

func (s *stubEnrollmentReader) ListActiveByProgram(ctx context.Context, programID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func newUnlockHandlerFixture(repo *stubUnlockRepo, secret string) *UnlockHandler {
	svc := service.NewUnlockService(repo, &stubEnrollmentReader{}, nil, nil, nil)
	return NewUnlockHandler(svc, secret)
}

func performCronCheck(handler *UnlockHandler, authorization string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/cron/unlock-check", nil)
	if authorization != "" {
		c.Request.Header.Set("Authorization", authorization)
	}
	handler.CronCheck(c)
	return rec
}

func TestCronCheckRejectsMissingSecret(t *testing.T) {
	handler := newUnlockHandlerFixture(&stubUnlockRepo{}, "cron-secret")

	rec := performCronCheck(handler, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body dto.UnlockCheckErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "unauthorized", body.Error)
	assert.False(t, body.Timestamp.IsZero())
}

func TestCronCheckRejectsWrongSecret(t *testing.T) {
	handler := newUnlockHandlerFixture(&stubUnlockRepo{}, "cron-secret")

	rec := performCronCheck(handler, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronCheckRejectsWhenSecretUnconfigured(t *testing.T) {
	handler := newUnlockHandlerFixture(&stubUnlockRepo{}, "")

	rec := performCronCheck(handler, "Bearer anything")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronCheckNoCandidates(t *testing.T) {
	handler := newUnlockHandlerFixture(&stubUnlockRepo{}, "cron-secret")

	rec := performCronCheck(handler, "Bearer cron-secret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body dto.UnlockCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Zero(t, body.CoursesUnlocked)
	assert.Equal(t, "No courses to unlock", body.Message)
	assert.NotNil(t, body.Details)
	assert.Empty(t, body.Details)
}

func TestCronCheckUnlocksDueCourse(t *testing.T) {
	programID := "prog-1"
	due := models.Course{ID: "course-b", Title: "Month Two", ProgramID: &programID}
	repo := &stubUnlockRepo{
		courses:    map[string]models.Course{"course-b": due},
		candidates: []models.Course{due},
	}
	handler := newUnlockHandlerFixture(repo, "cron-secret")

	rec := performCronCheck(handler, "Bearer cron-secret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body dto.UnlockCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.CoursesUnlocked)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "course-b", body.Details[0].CourseID)
	assert.Equal(t, "Unlock check completed", body.Message)
}

func TestCronCheckServiceFailure(t *testing.T) {
	repo := &stubUnlockRepo{listErr: errors.New("db down")}
	handler := newUnlockHandlerFixture(repo, "cron-secret")

	rec := performCronCheck(handler, "Bearer cron-secret")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body dto.UnlockCheckErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "unlock check failed", body.Error)
}

func TestManualUnlockForce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubUnlockRepo{courses: map[string]models.Course{"course-b": {ID: "course-b"}}}
	handler := newUnlockHandlerFixture(repo, "cron-secret")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/unlock", strings.NewReader(`{"courseId":"course-b","force":true}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.ManualUnlock(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"course-b"}, repo.forced)
}

func TestManualUnlockMissingCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newUnlockHandlerFixture(&stubUnlockRepo{}, "cron-secret")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/unlock", strings.NewReader(`{"courseId":"missing","force":true}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.ManualUnlock(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
