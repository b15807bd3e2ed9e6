package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
	"github.com/edukita/lms-api/pkg/mailer"
)

type mockNotificationRepo struct {
	notifications map[string]models.Notification
	unread        map[string]int
	markReadErr   error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		notifications: make(map[string]models.Notification),
		unread:        make(map[string]int),
	}
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID == filter.UserID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = "notif-1"
	}
	m.notifications[notification.ID] = *notification
	return nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	if m.markReadErr != nil {
		return m.markReadErr
	}
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	n.IsRead = true
	m.notifications[id] = n
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var affected int64
	for id, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			m.notifications[id] = n
			affected++
		}
	}
	return affected, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.unread[userID], nil
}

type captureMailer struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failures int
	done     chan struct{}
}

func (m *captureMailer) Send(msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return assert.AnError
	}
	m.sent = append(m.sent, msg)
	if m.done != nil {
		m.done <- struct{}{}
	}
	return nil
}

func (m *captureMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mailer.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

func waitForMessages(t *testing.T, done chan struct{}, count int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < count; i++ {
		select {
		case <-done:
		case <-deadline:
			t.Fatalf("timed out waiting for %d emails", count)
		}
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["n1"] = models.Notification{ID: "n1", UserID: "u1"}
	svc := NewNotificationService(repo, nil, NotificationConfig{}, nil)

	require.NoError(t, svc.MarkRead(context.Background(), "n1", "u1"))
	assert.True(t, repo.notifications["n1"].IsRead)

	err := svc.MarkRead(context.Background(), "n1", "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkAllReadReportsAffectedCount(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.notifications["n1"] = models.Notification{ID: "n1", UserID: "u1"}
	repo.notifications["n2"] = models.Notification{ID: "n2", UserID: "u1"}
	repo.notifications["n3"] = models.Notification{ID: "n3", UserID: "u2"}
	svc := NewNotificationService(repo, nil, NotificationConfig{}, nil)

	affected, err := svc.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.False(t, repo.notifications["n3"].IsRead)
}

func TestEnqueueCourseUnlockDeliversEmailPerRecipient(t *testing.T) {
	repo := newMockNotificationRepo()
	mail := &captureMailer{done: make(chan struct{}, 4)}
	svc := NewNotificationService(repo, mail, NotificationConfig{Workers: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	course := models.Course{ID: "course-b", Title: "Month Two"}
	svc.EnqueueCourseUnlock(course, []models.EnrollmentDetail{
		{ProgramEnrollment: models.ProgramEnrollment{UserID: "u1"}, UserName: "Ana", UserEmail: "ana@example.com"},
		{ProgramEnrollment: models.ProgramEnrollment{UserID: "u2"}, UserName: "Ben", UserEmail: "ben@example.com"},
		{ProgramEnrollment: models.ProgramEnrollment{UserID: "u3"}, UserName: "NoEmail"},
	})

	waitForMessages(t, mail.done, 2, 3*time.Second)

	sent := mail.messages()
	require.Len(t, sent, 2)
	addresses := []string{sent[0].ToAddress, sent[1].ToAddress}
	assert.ElementsMatch(t, []string{"ana@example.com", "ben@example.com"}, addresses)
	assert.Contains(t, sent[0].Body, "Month Two")
	assert.Equal(t, "New course unlocked", sent[0].Subject)
}

func TestEnqueueCourseUnlockRetriesFailedDelivery(t *testing.T) {
	repo := newMockNotificationRepo()
	mail := &captureMailer{failures: 1, done: make(chan struct{}, 1)}
	svc := NewNotificationService(repo, mail, NotificationConfig{Workers: 1, MaxRetries: 3}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	svc.EnqueueCourseUnlock(models.Course{ID: "course-b", Title: "Month Two"}, []models.EnrollmentDetail{
		{ProgramEnrollment: models.ProgramEnrollment{UserID: "u1"}, UserName: "Ana", UserEmail: "ana@example.com"},
	})

	waitForMessages(t, mail.done, 1, 5*time.Second)
	assert.Len(t, mail.messages(), 1)
}

func TestEnqueueCourseUnlockBeforeWorkersStartDoesNotPanic(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := NewNotificationService(repo, &captureMailer{}, NotificationConfig{}, nil)

	svc.EnqueueCourseUnlock(models.Course{ID: "course-b"}, []models.EnrollmentDetail{
		{ProgramEnrollment: models.ProgramEnrollment{UserID: "u1"}, UserEmail: "ana@example.com"},
	})
}
