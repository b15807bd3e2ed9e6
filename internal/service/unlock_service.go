package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/dto"
	"github.com/edukita/lms-api/internal/models"
	appErrors "github.com/edukita/lms-api/pkg/errors"
)

type unlockRepository interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	SetUnlockSchedule(ctx context.Context, courseID string, unlockDate time.Time, published bool) error
	ListUnlockCandidates(ctx context.Context, now time.Time) ([]models.Course, error)
	PublishAndNotify(ctx context.Context, courseID string, notifications []models.Notification) error
	ForcePublish(ctx context.Context, courseID string) error
}

type activeEnrollmentReader interface {
	ListActiveByProgram(ctx context.Context, programID string) ([]models.EnrollmentDetail, error)
}

// unlockMailer fans out email for freshly created unlock notifications.
// Called after the publish transaction commits.
type unlockMailer interface {
	EnqueueCourseUnlock(course models.Course, recipients []models.EnrollmentDetail)
}

type unlockObserver interface {
	ObserveUnlockScan(unlocked int, duration time.Duration)
}

// UnlockService implements the program unlock scheduling engine: it seeds
// per-course unlock dates at enrollment time and publishes courses whose
// date has passed and whose prerequisite is satisfied.
type UnlockService struct {
	repo        unlockRepository
	enrollments activeEnrollmentReader
	mailer      unlockMailer
	metrics     unlockObserver
	logger      *zap.Logger
}

// NewUnlockService constructs UnlockService. The mailer and metrics hooks
// are optional.
func NewUnlockService(repo unlockRepository, enrollments activeEnrollmentReader, mailer unlockMailer, metrics unlockObserver, logger *zap.Logger) *UnlockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnlockService{repo: repo, enrollments: enrollments, mailer: mailer, metrics: metrics, logger: logger}
}

// ScheduleProgramUnlocks computes one unlock date per course from the
// enrollment start date and persists it. The month-1 course is published
// immediately; every later month stays locked until the scan reaches it.
//
// Not idempotent across differing start dates: re-invoking overwrites prior
// unlock dates unconditionally, so callers must invoke it exactly once per
// enrollment-triggering event. The returned schedule is an echo for
// confirmation and logging only.
func (s *UnlockService) ScheduleProgramUnlocks(ctx context.Context, programID string, startDate time.Time, courses []models.CourseMonth) ([]models.ScheduledUnlock, error) {
	schedule := make([]models.ScheduledUnlock, 0, len(courses))
	for _, cm := range courses {
		unlockDate := firstDayOfOffsetMonth(startDate, cm.Month)
		published := cm.Month == 1
		if err := s.repo.SetUnlockSchedule(ctx, cm.CourseID, unlockDate, published); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist unlock schedule")
		}
		schedule = append(schedule, models.ScheduledUnlock{CourseID: cm.CourseID, Month: cm.Month, UnlockDate: unlockDate})
	}

	s.logger.Info("program unlock schedule written",
		zap.String("program_id", programID),
		zap.Time("start_date", startDate),
		zap.Int("courses", len(schedule)),
	)
	return schedule, nil
}

// CheckPrerequisites reports whether a course's prerequisite gate is open.
// A course without a prerequisite always passes. The check is point-in-time;
// a prerequisite published between two scans is observed by the next scan.
func (s *UnlockService) CheckPrerequisites(ctx context.Context, courseID string) (bool, error) {
	course, err := s.repo.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.PrerequisiteCourseID == nil {
		return true, nil
	}

	prereq, err := s.repo.FindCourse(ctx, *course.PrerequisiteCourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A dangling prerequisite reference can never be satisfied.
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite course")
	}
	return prereq.IsPublished, nil
}

// CheckAndUnlockCourses publishes every course whose unlock date has passed
// and whose prerequisite is satisfied, raising one notification per active
// enrollment. Each course's publish-and-notify is one transaction; a
// database error aborts the remainder of the batch while already committed
// courses stay committed. Courses failing the prerequisite check are skipped
// silently and retried on every subsequent scan.
func (s *UnlockService) CheckAndUnlockCourses(ctx context.Context) ([]models.UnlockedCourse, error) {
	start := time.Now()
	now := start.UTC()

	candidates, err := s.repo.ListUnlockCandidates(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unlock candidates")
	}

	unlocked := make([]models.UnlockedCourse, 0, len(candidates))
	for _, course := range candidates {
		ok, err := s.CheckPrerequisites(ctx, course.ID)
		if err != nil {
			return unlocked, err
		}
		if !ok {
			s.logger.Debug("course prerequisite not met, skipping",
				zap.String("course_id", course.ID),
				zap.Stringp("prerequisite_id", course.PrerequisiteCourseID),
			)
			continue
		}

		notifications, recipients, err := s.CreateUnlockNotifications(ctx, course.ID, derefString(course.ProgramID))
		if err != nil {
			return unlocked, err
		}

		if err := s.repo.PublishAndNotify(ctx, course.ID, notifications); err != nil {
			return unlocked, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish course")
		}

		if s.mailer != nil && len(recipients) > 0 {
			s.mailer.EnqueueCourseUnlock(course, recipients)
		}

		unlocked = append(unlocked, models.UnlockedCourse{CourseID: course.ID, Title: course.Title, Unlocked: true})
	}

	if s.metrics != nil {
		s.metrics.ObserveUnlockScan(len(unlocked), time.Since(start))
	}
	return unlocked, nil
}

// CreateUnlockNotifications builds one COURSE_UNLOCK notification per active
// enrollment of the course's program. A vanished course is a silent no-op,
// not an error. The rows are returned for insertion inside the publish
// transaction rather than written here.
func (s *UnlockService) CreateUnlockNotifications(ctx context.Context, courseID, programID string) ([]models.Notification, []models.EnrollmentDetail, error) {
	course, err := s.repo.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course for notification")
	}

	enrollments, err := s.enrollments.ListActiveByProgram(ctx, programID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active enrollments")
	}

	notifications := make([]models.Notification, 0, len(enrollments))
	for _, enrollment := range enrollments {
		notifications = append(notifications, models.Notification{
			UserID:           enrollment.UserID,
			Title:            "New course unlocked",
			Message:          fmt.Sprintf("The course %q is now available in your program.", course.Title),
			Type:             models.NotificationTypeCourseUnlock,
			RelatedCourseID:  &course.ID,
			RelatedProgramID: course.ProgramID,
		})
	}
	return notifications, enrollments, nil
}

// DailyUnlockCheck is the external entry point for the periodic scan. It
// only adds start/end logging around CheckAndUnlockCourses.
func (s *UnlockService) DailyUnlockCheck(ctx context.Context) ([]models.UnlockedCourse, error) {
	s.logger.Info("daily unlock check started")
	unlocked, err := s.CheckAndUnlockCourses(ctx)
	if err != nil {
		s.logger.Error("daily unlock check failed", zap.Error(err), zap.Int("unlocked_before_failure", len(unlocked)))
		return unlocked, err
	}
	s.logger.Info("daily unlock check finished", zap.Int("courses_unlocked", len(unlocked)))
	return unlocked, nil
}

// ManualUnlock handles the operator override endpoint. With force set the
// course is published unconditionally, bypassing date and prerequisite
// checks and sending no notifications. Without force a normal scan runs and
// the response reports whether the named course was among those unlocked.
func (s *UnlockService) ManualUnlock(ctx context.Context, req dto.ManualUnlockRequest) (*dto.ManualUnlockResponse, error) {
	if req.Force {
		if _, err := s.repo.FindCourse(ctx, req.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if err := s.repo.ForcePublish(ctx, req.CourseID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to force publish course")
		}
		s.logger.Warn("course force unlocked", zap.String("course_id", req.CourseID))
		return &dto.ManualUnlockResponse{CourseID: req.CourseID, Unlocked: true, Forced: true}, nil
	}

	unlocked, err := s.CheckAndUnlockCourses(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.ManualUnlockResponse{CourseID: req.CourseID, Details: unlocked}
	for _, u := range unlocked {
		if u.CourseID == req.CourseID {
			resp.Unlocked = true
			break
		}
	}
	return resp, nil
}

// firstDayOfOffsetMonth returns midnight UTC on the first calendar day of
// the month at the 1-indexed offset from the start date.
func firstDayOfOffsetMonth(startDate time.Time, month int) time.Time {
	st := startDate.UTC()
	return time.Date(st.Year(), st.Month()+time.Month(month-1), 1, 0, 0, 0, 0, time.UTC)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
