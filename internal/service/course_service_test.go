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

type mockCourseRepo struct {
	courses   map[string]models.Course
	assigned  []string
	published map[string]bool
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses:   make(map[string]models.Course),
		published: make(map[string]bool),
	}
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ListByProgram(ctx context.Context, programID string) ([]models.Course, error) {
	return nil, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "new-course"
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) AssignToProgram(ctx context.Context, courseID, programID string, month int, prerequisiteID *string) error {
	m.assigned = append(m.assigned, courseID)
	c := m.courses[courseID]
	c.ProgramID = &programID
	c.ProgramMonth = &month
	c.PrerequisiteCourseID = prerequisiteID
	m.courses[courseID] = c
	return nil
}

func (m *mockCourseRepo) SetPublished(ctx context.Context, courseID string, published bool) error {
	m.published[courseID] = published
	c := m.courses[courseID]
	c.IsPublished = published
	m.courses[courseID] = c
	return nil
}

type mockChapterRepo struct {
	chapters map[string]models.Chapter
	deleted  []string
}

func newMockChapterRepo() *mockChapterRepo {
	return &mockChapterRepo{chapters: make(map[string]models.Chapter)}
}

func (m *mockChapterRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Chapter, error) {
	var out []models.Chapter
	for _, ch := range m.chapters {
		if ch.CourseID == courseID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *mockChapterRepo) FindByID(ctx context.Context, id string) (*models.Chapter, error) {
	if ch, ok := m.chapters[id]; ok {
		return &ch, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChapterRepo) Create(ctx context.Context, chapter *models.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = "new-chapter"
	}
	m.chapters[chapter.ID] = *chapter
	return nil
}

func (m *mockChapterRepo) Update(ctx context.Context, chapter *models.Chapter) error {
	m.chapters[chapter.ID] = *chapter
	return nil
}

func (m *mockChapterRepo) Delete(ctx context.Context, id string) error {
	delete(m.chapters, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newCourseFixture() (*CourseService, *mockCourseRepo, *mockChapterRepo) {
	repo := newMockCourseRepo()
	chapters := newMockChapterRepo()
	programs := &mockProgramReader{programs: map[string]models.TechnicalProgram{
		"prog-1": {ID: "prog-1", Title: "Data Engineering", DurationMonths: 6},
	}}
	svc := NewCourseService(repo, chapters, programs, nil, nil)
	return svc, repo, chapters
}

func TestAssignToProgramRejectsSelfPrerequisite(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a", Title: "Intro"}

	_, err := svc.AssignToProgram(context.Background(), "course-a", AssignCourseRequest{
		ProgramID:            "prog-1",
		Month:                1,
		PrerequisiteCourseID: strPtr("course-a"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.assigned)
}

func TestAssignToProgramRejectsCrossProgramPrerequisite(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a", ProgramID: strPtr("prog-other")}
	repo.courses["course-b"] = models.Course{ID: "course-b"}

	_, err := svc.AssignToProgram(context.Background(), "course-b", AssignCourseRequest{
		ProgramID:            "prog-1",
		Month:                2,
		PrerequisiteCourseID: strPtr("course-a"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignToProgramWithValidPrerequisite(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a", ProgramID: strPtr("prog-1")}
	repo.courses["course-b"] = models.Course{ID: "course-b"}

	course, err := svc.AssignToProgram(context.Background(), "course-b", AssignCourseRequest{
		ProgramID:            "prog-1",
		Month:                2,
		PrerequisiteCourseID: strPtr("course-a"),
	})
	require.NoError(t, err)
	require.NotNil(t, course.ProgramID)
	assert.Equal(t, "prog-1", *course.ProgramID)
	require.NotNil(t, course.ProgramMonth)
	assert.Equal(t, 2, *course.ProgramMonth)
}

func TestAssignToProgramMissingProgram(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a"}

	_, err := svc.AssignToProgram(context.Background(), "course-a", AssignCourseRequest{
		ProgramID: "missing",
		Month:     1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSetPublishedBlockedUnderScheduleControl(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	unlockDate := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo.courses["course-b"] = models.Course{ID: "course-b", UnlockDate: &unlockDate}

	_, err := svc.SetPublished(context.Background(), "course-b", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.published)
}

func TestSetPublishedAlreadyPublished(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a", IsPublished: true}

	_, err := svc.SetPublished(context.Background(), "course-a", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyPublished.Code, appErrors.FromError(err).Code)
}

func TestSetPublishedUnscheduledCourse(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a"}

	course, err := svc.SetPublished(context.Background(), "course-a", true)
	require.NoError(t, err)
	assert.True(t, course.IsPublished)
	assert.True(t, repo.published["course-a"])
}

func TestAddChapterValidatesPayload(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a"}

	_, err := svc.AddChapter(context.Background(), "course-a", CreateChapterRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAddAndRemoveChapter(t *testing.T) {
	svc, repo, chapters := newCourseFixture()
	repo.courses["course-a"] = models.Course{ID: "course-a"}

	chapter, err := svc.AddChapter(context.Background(), "course-a", CreateChapterRequest{
		Title:           "Getting Started",
		Position:        1,
		DurationSeconds: 600,
	})
	require.NoError(t, err)
	assert.Equal(t, "course-a", chapter.CourseID)

	require.NoError(t, svc.RemoveChapter(context.Background(), chapter.ID))
	assert.Equal(t, []string{chapter.ID}, chapters.deleted)

	err = svc.RemoveChapter(context.Background(), chapter.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
