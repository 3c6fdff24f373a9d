// Package scheduler polls for due schedules and fans their scans out to a
// bounded worker pool. One poll attempts each due schedule at most once:
// whatever the outcome, the schedule's next_run_at is recomputed before the
// next poll can see it again.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/executor"
	"github.com/threatengine/onboarding/internal/metrics"
	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/nextrun"
)

// ScheduleStore is the schedule access the scheduler needs.
type ScheduleStore interface {
	Due(ctx context.Context, now time.Time) ([]models.Schedule, error)
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	RecordRun(ctx context.Context, id string, startedAt time.Time, success bool, nextRunAt *time.Time) error
}

// Runner executes one tracked scan.
type Runner interface {
	RunTracked(ctx context.Context, req executor.Request) (string, *engine.ScanResult, error)
}

// Service is the polling scheduler daemon.
type Service struct {
	schedules ScheduleStore
	runner    Runner
	interval  time.Duration
	workers   int
	log       *slog.Logger
}

// New returns a Service. workers bounds concurrent scans per poll.
func New(schedules ScheduleStore, runner Runner, interval time.Duration, workers int, log *slog.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		schedules: schedules,
		runner:    runner,
		interval:  interval,
		workers:   workers,
		log:       log,
	}
}

// Run polls until ctx is cancelled. In-flight scans finish before it returns.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "poll_interval", s.interval, "workers", s.workers)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Poll(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one poll cycle: query due schedules and execute each at most once.
// Errors are isolated per schedule; one bad schedule never blocks the rest.
func (s *Service) Poll(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := s.schedules.Due(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("query due schedules", "error", err)
		return
	}
	metrics.DueSchedules.Observe(float64(len(due)))
	if len(due) == 0 {
		return
	}
	s.log.Info("due schedules", "count", len(due))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range due {
		sched := due[i]
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("schedule run panicked",
						"schedule_id", sched.ID, "panic", r, "stack", string(debug.Stack()))
				}
			}()
			s.runSchedule(ctx, sched)
		}()
	}
	wg.Wait()
}

// runSchedule executes one due schedule and records the run. The schedule is
// re-read first so a pause or delete between the due query and the worker
// picking it up is honored.
func (s *Service) runSchedule(ctx context.Context, sched models.Schedule) {
	fresh, err := s.schedules.GetByID(ctx, sched.ID)
	if err != nil {
		s.log.Error("reload schedule", "schedule_id", sched.ID, "error", err)
		return
	}
	if fresh == nil || !fresh.Enabled || fresh.Status != models.ScheduleActive {
		s.log.Info("skipping schedule", "schedule_id", sched.ID)
		return
	}

	startedAt := time.Now().UTC()
	execID, result, runErr := s.runner.RunTracked(ctx, executor.Request{
		ScheduleID:      fresh.ID,
		AccountID:       fresh.AccountID,
		ProviderType:    fresh.ProviderType,
		Regions:         fresh.Regions,
		Services:        fresh.Services,
		ExcludeServices: fresh.ExcludeServices,
		TriggeredBy:     models.TriggeredByScheduler,
	})
	if runErr != nil {
		s.log.Error("schedule run failed",
			"schedule_id", fresh.ID, "execution_id", execID, "error", runErr)
	} else {
		s.log.Info("schedule run completed",
			"schedule_id", fresh.ID, "execution_id", execID,
			"scan_id", result.ScanID, "failed_checks", result.FailedChecks)
	}

	// recompute next_run_at even on failure so the schedule cannot come due
	// again in the very next poll
	next, err := nextrun.Compute(fresh.Kind, fresh.CronExpression, fresh.IntervalSeconds, fresh.Timezone, time.Now().UTC())
	if err != nil {
		s.log.Error("compute next run", "schedule_id", fresh.ID, "error", err)
		next = nil
	}
	if err := s.schedules.RecordRun(ctx, fresh.ID, startedAt, runErr == nil, next); err != nil {
		s.log.Error("record schedule run", "schedule_id", fresh.ID, "error", err)
	}
}
