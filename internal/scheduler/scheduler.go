package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/edukita/lms-api/internal/models"
)

type unlockRunner interface {
	DailyUnlockCheck(ctx context.Context) ([]models.UnlockedCourse, error)
}

// Scheduler runs the daily unlock scan in-process. External cron hitting the
// HTTP trigger remains the primary path; this covers deployments without one.
type Scheduler struct {
	cron   *cron.Cron
	unlock unlockRunner
	logger *zap.Logger
}

// New constructs a Scheduler. The cron engine runs in UTC so schedules line
// up with unlock dates, which are stored at midnight UTC.
func New(unlock unlockRunner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		unlock: unlock,
		logger: logger,
	}
}

// Start registers the unlock job on the given schedule and starts the engine.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		unlocked, err := s.unlock.DailyUnlockCheck(ctx)
		if err != nil {
			s.logger.Error("scheduled unlock check failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled unlock check finished", zap.Int("courses_unlocked", len(unlocked)))
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("unlock scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the cron engine and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("unlock scheduler stopped")
}
