package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Retention purges errors older than a fixed number of days on a cron schedule.
type Retention struct {
	scheduler *gocron.Scheduler
	errors    *ErrorService
	days      int
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetention schedules a purge of entries older than days. schedule is a
// five-field cron expression evaluated in UTC.
func NewRetention(svc *ErrorService, days int, schedule string, logger *slog.Logger) (*Retention, error) {
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", days)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Retention{
		scheduler: gocron.NewScheduler(time.UTC),
		errors:    svc,
		days:      days,
		logger:    logger,
		now:       time.Now,
	}
	if _, err := r.scheduler.Cron(schedule).Do(r.run); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the scheduler in the background.
func (r *Retention) Start() {
	r.scheduler.StartAsync()
	r.logger.Info("retention scheduler started", "days", r.days)
}

// Stop halts the scheduler.
func (r *Retention) Stop() {
	r.scheduler.Stop()
}

// Cutoff returns the oldest time kept.
func (r *Retention) Cutoff() time.Time {
	return r.now().UTC().AddDate(0, 0, -r.days)
}

// RunOnce purges immediately.
func (r *Retention) RunOnce(ctx context.Context) (map[string]int64, error) {
	return r.errors.PurgeAll(ctx, r.Cutoff())
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("retention purge failed", "error", err)
		return
	}
	r.logger.Info("retention purge finished", "removed", removed)
}
