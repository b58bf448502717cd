package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/pipeline"
)

// Enqueuer queues feature builds.
type Enqueuer interface {
	Enqueue(ctx context.Context, req pipeline.Request) (*pipeline.Job, error)
}

// Config holds scheduler configuration
type Config struct {
	DailyRebuildHour int           // Default: 4 (4 AM)
	MaxRetries       int           // Default: 3
	RetryDelay       time.Duration // Default: 30s
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		DailyRebuildHour: 4,
		MaxRetries:       3,
		RetryDelay:       30 * time.Second,
	}
}

// Orchestrator queues a full feature rebuild once a day, after the
// upstream exports have been refreshed.
type Orchestrator struct {
	builds Enqueuer
	config Config
	logger logrus.FieldLogger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	lastJob string
	lastRun time.Time
	nextRun time.Time
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(builds Enqueuer, config Config, logger logrus.FieldLogger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &Orchestrator{
		builds: builds,
		config: config,
		logger: logger.WithField("component", "scheduler"),
		now:    time.Now,
		after:  time.After,
	}
}

// Start runs the daily loop until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.WithField("hour", o.config.DailyRebuildHour).Info("→ Daily rebuild scheduler started")

	for {
		next := NextRun(o.now(), o.config.DailyRebuildHour)
		o.mu.Lock()
		o.nextRun = next
		o.mu.Unlock()

		wait := next.Sub(o.now())
		o.logger.Infof("  Next rebuild: %s (in %v)", next.Format("2006-01-02 15:04:05"), wait.Round(time.Second))

		select {
		case <-ctx.Done():
			o.logger.Info("→ Daily rebuild scheduler stopped")
			return
		case <-o.after(wait):
			if _, err := o.TriggerRebuild(ctx); err != nil {
				o.logger.WithError(err).Error("❌ Scheduled rebuild failed")
			}
		}
	}
}

// TriggerRebuild queues a build with the service defaults, retrying
// enqueue failures.
func (o *Orchestrator) TriggerRebuild(ctx context.Context) (*pipeline.Job, error) {
	var err error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		var job *pipeline.Job
		job, err = o.builds.Enqueue(ctx, pipeline.Request{})
		if err == nil {
			o.mu.Lock()
			o.lastJob = job.JobID
			o.lastRun = o.now()
			o.mu.Unlock()

			o.logger.WithField("job_id", job.JobID).Info("✓ Scheduled rebuild queued")
			return job, nil
		}

		o.logger.WithError(err).Warnf("  ⚠️  Enqueue attempt %d/%d failed", attempt, o.config.MaxRetries)
		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-o.after(o.config.RetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("enqueue rebuild after %d attempts: %w", o.config.MaxRetries, err)
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := map[string]interface{}{
		"daily_rebuild_hour": o.config.DailyRebuildHour,
	}
	if !o.nextRun.IsZero() {
		status["next_run"] = o.nextRun
	}
	if o.lastJob != "" {
		status["last_job_id"] = o.lastJob
		status["last_run"] = o.lastRun
	}
	return status
}

// NextRun returns the first time at hour:00 strictly after now.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
