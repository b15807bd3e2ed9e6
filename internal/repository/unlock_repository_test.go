package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/edukita/lms-api/internal/models"
)

func newUnlockRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "description", "program_id", "program_month", "prerequisite_course_id", "is_published", "unlock_date", "created_by", "created_at", "updated_at"})
}

func TestUnlockRepositorySetUnlockSchedule(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRepository(db)
	unlockDate := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET unlock_date = $2, is_published = $3")).
		WithArgs("course-b", unlockDate, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetUnlockSchedule(context.Background(), "course-b", unlockDate, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRepositoryListUnlockCandidates(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRepository(db)
	now := time.Date(2024, time.February, 5, 6, 0, 0, 0, time.UTC)
	unlockDate := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	rows := courseRows().
		AddRow("course-b", "Month Two", "", "prog-1", 2, "course-a", false, unlockDate, "admin-1", time.Now(), time.Now())

	// The query itself excludes published rows and unscheduled rows, so a
	// course is never unlocked twice.
	mock.ExpectQuery(regexp.QuoteMeta("unlock_date IS NOT NULL AND unlock_date <= $1 AND is_published = false AND program_id IS NOT NULL")).
		WithArgs(now).
		WillReturnRows(rows)

	candidates, err := repo.ListUnlockCandidates(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "course-b", candidates[0].ID)
	require.NotNil(t, candidates[0].PrerequisiteCourseID)
	require.Equal(t, "course-a", *candidates[0].PrerequisiteCourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRepositoryPublishAndNotifyCommitsTogether(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRepository(db)
	courseID := "course-b"
	programID := "prog-1"
	notifications := []models.Notification{
		{UserID: "u1", Title: "New course unlocked", Message: "m", Type: models.NotificationTypeCourseUnlock, RelatedCourseID: &courseID, RelatedProgramID: &programID},
		{UserID: "u2", Title: "New course unlocked", Message: "m", Type: models.NotificationTypeCourseUnlock, RelatedCourseID: &courseID, RelatedProgramID: &programID},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET is_published = true")).
		WithArgs(courseID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.PublishAndNotify(context.Background(), courseID, notifications))
	require.NotEmpty(t, notifications[0].ID)
	require.NotEmpty(t, notifications[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRepositoryPublishAndNotifyRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRepository(db)
	notifications := []models.Notification{
		{UserID: "u1", Title: "New course unlocked", Message: "m", Type: models.NotificationTypeCourseUnlock},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET is_published = true")).
		WithArgs("course-b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.PublishAndNotify(context.Background(), "course-b", notifications)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRepositoryForcePublish(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET is_published = true")).
		WithArgs("course-b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ForcePublish(context.Background(), "course-b"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockRepositoryFindCourse(t *testing.T) {
	db, mock, cleanup := newUnlockRepoMock(t)
	defer cleanup()

	repo := NewUnlockRepository(db)
	rows := courseRows().
		AddRow("course-a", "Month One", "", "prog-1", 1, nil, true, time.Now(), "admin-1", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("course-a").
		WillReturnRows(rows)

	course, err := repo.FindCourse(context.Background(), "course-a")
	require.NoError(t, err)
	require.Equal(t, "course-a", course.ID)
	require.True(t, course.IsPublished)
	require.NoError(t, mock.ExpectationsWereMet())
}
