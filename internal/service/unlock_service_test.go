package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/lms-api/internal/dto"
	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
)

type mockUnlockRepo struct {
	courses        map[string]models.Course
	candidates     []models.Course
	scheduled      map[string]models.ScheduledUnlock
	published      []string
	notified       map[string][]models.Notification
	forcePublished []string
	publishErr     map[string]error
	listErr        error
}

func newMockUnlockRepo() *mockUnlockRepo {
	return &mockUnlockRepo{
		courses:   make(map[string]models.Course),
		scheduled: make(map[string]models.ScheduledUnlock),
		notified:  make(map[string][]models.Notification),
	}
}

func (m *mockUnlockRepo) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUnlockRepo) SetUnlockSchedule(ctx context.Context, courseID string, unlockDate time.Time, published bool) error {
	m.scheduled[courseID] = models.ScheduledUnlock{CourseID: courseID, UnlockDate: unlockDate}
	if c, ok := m.courses[courseID]; ok {
		c.UnlockDate = &unlockDate
		c.IsPublished = published
		m.courses[courseID] = c
	}
	return nil
}

func (m *mockUnlockRepo) ListUnlockCandidates(ctx context.Context, now time.Time) ([]models.Course, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.candidates, nil
}

func (m *mockUnlockRepo) PublishAndNotify(ctx context.Context, courseID string, notifications []models.Notification) error {
	if err, ok := m.publishErr[courseID]; ok {
		return err
	}
	m.published = append(m.published, courseID)
	m.notified[courseID] = notifications
	if c, ok := m.courses[courseID]; ok {
		c.IsPublished = true
		m.courses[courseID] = c
	}
	return nil
}

func (m *mockUnlockRepo) ForcePublish(ctx context.Context, courseID string) error {
	m.forcePublished = append(m.forcePublished, courseID)
	if c, ok := m.courses[courseID]; ok {
		c.IsPublished = true
		m.courses[courseID] = c
	}
	return nil
}

type mockActiveEnrollments struct {
	byProgram map[string][]models.EnrollmentDetail
	err       error
}

func (m *mockActiveEnrollments) ListActiveByProgram(ctx context.Context, programID string) ([]models.EnrollmentDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byProgram[programID], nil
}

type mockUnlockMailer struct {
	calls []struct {
		course     models.Course
		recipients []models.EnrollmentDetail
	}
}

func (m *mockUnlockMailer) EnqueueCourseUnlock(course models.Course, recipients []models.EnrollmentDetail) {
	m.calls = append(m.calls, struct {
		course     models.Course
		recipients []models.EnrollmentDetail
	}{course, recipients})
}

func strPtr(s string) *string { return &s }

func activeEnrollment(userID string) models.EnrollmentDetail {
	return models.EnrollmentDetail{
		ProgramEnrollment: models.ProgramEnrollment{
			ID:     "enr-" + userID,
			UserID: userID,
			Status: models.EnrollmentStatusActive,
		},
		UserName:  "User " + userID,
		UserEmail: userID + "@example.com",
	}
}

func TestScheduleProgramUnlocksFirstDayOfMonth(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	start := time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)
	schedule, err := svc.ScheduleProgramUnlocks(context.Background(), "prog-1", start, []models.CourseMonth{
		{CourseID: "course-a", Month: 1},
		{CourseID: "course-b", Month: 2},
		{CourseID: "course-c", Month: 3},
	})
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), schedule[0].UnlockDate)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), schedule[1].UnlockDate)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), schedule[2].UnlockDate)
}

func TestScheduleProgramUnlocksFirstMonthPublishedImmediately(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-a"] = models.Course{ID: "course-a"}
	repo.courses["course-b"] = models.Course{ID: "course-b"}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	start := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	_, err := svc.ScheduleProgramUnlocks(context.Background(), "prog-1", start, []models.CourseMonth{
		{CourseID: "course-a", Month: 1},
		{CourseID: "course-b", Month: 2},
	})
	require.NoError(t, err)

	assert.True(t, repo.courses["course-a"].IsPublished)
	assert.False(t, repo.courses["course-b"].IsPublished)
}

func TestScheduleProgramUnlocksYearRollover(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	start := time.Date(2024, time.November, 10, 0, 0, 0, 0, time.UTC)
	schedule, err := svc.ScheduleProgramUnlocks(context.Background(), "prog-1", start, []models.CourseMonth{
		{CourseID: "course-c", Month: 3},
	})
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), schedule[0].UnlockDate)
}

func TestCheckPrerequisitesNoPrerequisitePasses(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-a"] = models.Course{ID: "course-a"}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	ok, err := svc.CheckPrerequisites(context.Background(), "course-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckPrerequisitesGateFollowsPrereqPublication(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-a"] = models.Course{ID: "course-a", IsPublished: false}
	repo.courses["course-b"] = models.Course{ID: "course-b", PrerequisiteCourseID: strPtr("course-a")}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	ok, err := svc.CheckPrerequisites(context.Background(), "course-b")
	require.NoError(t, err)
	assert.False(t, ok)

	a := repo.courses["course-a"]
	a.IsPublished = true
	repo.courses["course-a"] = a

	ok, err = svc.CheckPrerequisites(context.Background(), "course-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckPrerequisitesDanglingReferenceBlocks(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-b"] = models.Course{ID: "course-b", PrerequisiteCourseID: strPtr("gone")}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	ok, err := svc.CheckPrerequisites(context.Background(), "course-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPrerequisitesMissingCourse(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	_, err := svc.CheckPrerequisites(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCheckAndUnlockCoursesPublishesDueCandidates(t *testing.T) {
	repo := newMockUnlockRepo()
	due := models.Course{ID: "course-b", Title: "Month Two", ProgramID: strPtr("prog-1")}
	repo.courses["course-b"] = due
	repo.candidates = []models.Course{due}
	enrollments := &mockActiveEnrollments{byProgram: map[string][]models.EnrollmentDetail{
		"prog-1": {activeEnrollment("u1"), activeEnrollment("u2"), activeEnrollment("u3")},
	}}
	mail := &mockUnlockMailer{}
	svc := NewUnlockService(repo, enrollments, mail, nil, nil)

	unlocked, err := svc.CheckAndUnlockCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "course-b", unlocked[0].CourseID)
	assert.True(t, unlocked[0].Unlocked)

	notifications := repo.notified["course-b"]
	require.Len(t, notifications, 3)
	for _, n := range notifications {
		assert.Equal(t, models.NotificationTypeCourseUnlock, n.Type)
		assert.Equal(t, `The course "Month Two" is now available in your program.`, n.Message)
		require.NotNil(t, n.RelatedCourseID)
		assert.Equal(t, "course-b", *n.RelatedCourseID)
	}

	require.Len(t, mail.calls, 1)
	assert.Len(t, mail.calls[0].recipients, 3)
}

func TestCheckAndUnlockCoursesSkipsUnmetPrerequisite(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-a"] = models.Course{ID: "course-a", IsPublished: false}
	blocked := models.Course{ID: "course-b", ProgramID: strPtr("prog-1"), PrerequisiteCourseID: strPtr("course-a")}
	repo.courses["course-b"] = blocked
	repo.candidates = []models.Course{blocked}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	unlocked, err := svc.CheckAndUnlockCourses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unlocked)
	assert.Empty(t, repo.published)
}

func TestCheckAndUnlockCoursesNoCandidates(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	unlocked, err := svc.CheckAndUnlockCourses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestCheckAndUnlockCoursesPartialBatchOnPublishError(t *testing.T) {
	repo := newMockUnlockRepo()
	first := models.Course{ID: "course-a", Title: "First", ProgramID: strPtr("prog-1")}
	second := models.Course{ID: "course-b", Title: "Second", ProgramID: strPtr("prog-1")}
	repo.courses["course-a"] = first
	repo.courses["course-b"] = second
	repo.candidates = []models.Course{first, second}
	repo.publishErr = map[string]error{"course-b": errors.New("connection reset")}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	unlocked, err := svc.CheckAndUnlockCourses(context.Background())
	require.Error(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "course-a", unlocked[0].CourseID)
	assert.Equal(t, []string{"course-a"}, repo.published)
}

func TestCreateUnlockNotificationsVanishedCourseIsNoOp(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	notifications, recipients, err := svc.CreateUnlockNotifications(context.Background(), "gone", "prog-1")
	require.NoError(t, err)
	assert.Nil(t, notifications)
	assert.Nil(t, recipients)
}

func TestCreateUnlockNotificationsOnePerActiveEnrollment(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-b"] = models.Course{ID: "course-b", Title: "Month Two", ProgramID: strPtr("prog-1")}
	enrollments := &mockActiveEnrollments{byProgram: map[string][]models.EnrollmentDetail{
		"prog-1": {activeEnrollment("u1"), activeEnrollment("u2")},
	}}
	svc := NewUnlockService(repo, enrollments, nil, nil, nil)

	notifications, recipients, err := svc.CreateUnlockNotifications(context.Background(), "course-b", "prog-1")
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	require.Len(t, recipients, 2)
	assert.Equal(t, "u1", notifications[0].UserID)
	assert.Equal(t, "u2", notifications[1].UserID)
}

func TestManualUnlockForceBypassesChecksAndSkipsNotifications(t *testing.T) {
	repo := newMockUnlockRepo()
	repo.courses["course-b"] = models.Course{
		ID:                   "course-b",
		ProgramID:            strPtr("prog-1"),
		PrerequisiteCourseID: strPtr("course-a"),
	}
	mail := &mockUnlockMailer{}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, mail, nil, nil)

	res, err := svc.ManualUnlock(context.Background(), dto.ManualUnlockRequest{CourseID: "course-b", Force: true})
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
	assert.True(t, res.Forced)
	assert.Equal(t, []string{"course-b"}, repo.forcePublished)
	assert.Empty(t, repo.notified["course-b"])
	assert.Empty(t, mail.calls)
}

func TestManualUnlockForceMissingCourse(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	_, err := svc.ManualUnlock(context.Background(), dto.ManualUnlockRequest{CourseID: "missing", Force: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestManualUnlockWithoutForceRunsScan(t *testing.T) {
	repo := newMockUnlockRepo()
	due := models.Course{ID: "course-b", Title: "Month Two", ProgramID: strPtr("prog-1")}
	repo.courses["course-b"] = due
	repo.candidates = []models.Course{due}
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	res, err := svc.ManualUnlock(context.Background(), dto.ManualUnlockRequest{CourseID: "course-b"})
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
	assert.False(t, res.Forced)
	require.Len(t, res.Details, 1)
}

func TestManualUnlockWithoutForceCourseNotDue(t *testing.T) {
	repo := newMockUnlockRepo()
	svc := NewUnlockService(repo, &mockActiveEnrollments{}, nil, nil, nil)

	res, err := svc.ManualUnlock(context.Background(), dto.ManualUnlockRequest{CourseID: "course-z"})
	require.NoError(t, err)
	assert.False(t, res.Unlocked)
}

func TestFirstDayOfOffsetMonthNormalizesToUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	start := time.Date(2024, time.March, 1, 2, 0, 0, 0, jakarta)

	got := firstDayOfOffsetMonth(start, 1)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), got)
}
