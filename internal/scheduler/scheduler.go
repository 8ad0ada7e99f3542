package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Loader is anything that can reload itself, such as the device directory.
type Loader interface {
	Load(ctx context.Context) error
}

// Scheduler periodically reloads the device directory.
type Scheduler struct {
	scheduler *gocron.Scheduler
	loader    Loader
	interval  time.Duration
	timeout   time.Duration
	log       *zap.Logger
}

// New creates a new Scheduler. Each run gets its own timeout.
func New(loader Loader, interval, timeout time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		loader:    loader,
		interval:  interval,
		timeout:   timeout,
		log:       log,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first run happens one interval from now; the initial load is the caller's.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("scheduler: directory refresh disabled")
		return nil
	}

	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}

	_, err := s.scheduler.Every(seconds).Seconds().WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler: directory refresh scheduled", zap.Duration("every", s.interval))
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.loader.Load(ctx); err != nil {
		// Load already logged the cause and kept the previous snapshot.
		s.log.Warn("scheduler: directory refresh failed", zap.Duration("took", time.Since(start)))
		return
	}
	s.log.Debug("scheduler: directory refreshed", zap.Duration("took", time.Since(start)))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
