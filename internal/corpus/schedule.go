package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler re-syncs all sources on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	syncer    *Syncer
}

// NewScheduler creates a Scheduler for syncer.
func NewScheduler(syncer *Syncer) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		syncer:    syncer,
	}
}

// Start schedules a sync every interval, the first one interval from now.
// Runs never overlap.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", interval)
	}
	_, err := s.scheduler.Every(interval).WaitForSchedule().Do(func() {
		if _, err := s.syncer.SyncAll(ctx); err != nil {
			s.syncer.logger.Error("Scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates the scheduled syncs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}
