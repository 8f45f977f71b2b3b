// Package scheduler evaluates recurring backup schedules on a fixed tick and
// hands due work to the orchestrator. It never backfills: after downtime each
// schedule produces at most one catch-up run.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/orchestrator"
)

// ScheduleStore is the slice of the schedule registry the scheduler reads.
type ScheduleStore interface {
	ListActive(ctx context.Context) ([]model.Schedule, error)
	SetLastRun(ctx context.Context, id string, at time.Time) error
}

// Runner executes the work a due schedule produces.
type Runner interface {
	ExecuteBackup(ctx context.Context, params orchestrator.BackupParams) (*model.Run, error)
	ApplyRetention(ctx context.Context, targetID, destinationID string, retentionDays int) error
}

type Scheduler struct {
	schedules ScheduleStore
	runner    Runner
	logger    zerolog.Logger
	interval  time.Duration
	wg        sync.WaitGroup

	// now is swapped in tests.
	now func() time.Time
}

func New(schedules ScheduleStore, runner Runner, logger zerolog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		runner:    runner,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		interval:  interval,
		now:       time.Now,
	}
}

// Run evaluates schedules every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates all active schedules once and enqueues the due ones.
func (s *Scheduler) Tick(ctx context.Context) {
	schedules, err := s.schedules.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list active schedules")
		return
	}

	now := s.now()
	for _, sched := range schedules {
		due, err := Due(&sched, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("schedule_id", sched.ID).
				Str("interval", sched.Interval).Msg("schedule has invalid interval, skipping")
			continue
		}
		if !due {
			continue
		}
		// Stamp last_run_at before starting the run, so a run outlasting
		// the tick interval is not enqueued a second time.
		if err := s.schedules.SetLastRun(ctx, sched.ID, now); err != nil {
			s.logger.Error().Err(err).Str("schedule_id", sched.ID).Msg("stamp schedule last run")
			continue
		}
		// Each due schedule runs independently; a slow backup on one
		// target must not hold up the others.
		s.wg.Add(1)
		go func(sched model.Schedule) {
			defer s.wg.Done()
			s.execute(ctx, &sched)
		}(sched)
	}
}

// execute drives one scheduled backup to completion and applies retention
// after a success. The caller already stamped last_run_at.
func (s *Scheduler) execute(ctx context.Context, sched *model.Schedule) {
	run, err := s.runner.ExecuteBackup(ctx, orchestrator.BackupParams{
		TargetID:      sched.TargetID,
		DestinationID: sched.DestinationID,
		TriggeredBy:   "schedule:" + sched.ID,
		Compress:      true,
	})
	if err != nil {
		// A dangling or deactivated reference flags the schedule in the log
		// and skips it; the schedule itself is never deleted automatically.
		s.logger.Warn().Err(err).Str("schedule_id", sched.ID).
			Str("target_id", sched.TargetID).Msg("schedule skipped: configuration invalid")
		return
	}
	if run.Status != model.RunSucceeded {
		kind := ""
		if run.ErrorKind != nil {
			kind = *run.ErrorKind
		}
		s.logger.Warn().Str("schedule_id", sched.ID).Str("run_id", run.ID).
			Str("error_kind", kind).Msg("scheduled backup failed")
		return
	}

	s.logger.Info().Str("schedule_id", sched.ID).Str("run_id", run.ID).
		Msg("scheduled backup succeeded")

	if sched.RetentionDays > 0 {
		if err := s.runner.ApplyRetention(ctx, sched.TargetID, sched.DestinationID, sched.RetentionDays); err != nil {
			s.logger.Error().Err(err).Str("schedule_id", sched.ID).Msg("retention sweep failed")
		}
	}
}

// symbolicDuration maps the symbolic intervals to fixed durations. Monthly is
// a fixed 30 days; calendar-aware monthly schedules use a cron expression.
func symbolicDuration(interval string) (time.Duration, bool) {
	switch interval {
	case model.IntervalHourly:
		return time.Hour, true
	case model.IntervalDaily:
		return 24 * time.Hour, true
	case model.IntervalWeekly:
		return 7 * 24 * time.Hour, true
	case model.IntervalMonthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Due reports whether the schedule should fire at now. A schedule that has
// never run is immediately due. Missed windows collapse into a single run.
func Due(sched *model.Schedule, now time.Time) (bool, error) {
	if sched.LastRunAt == nil {
		return true, nil
	}
	if d, ok := symbolicDuration(sched.Interval); ok {
		return !now.Before(sched.LastRunAt.Add(d)), nil
	}
	expr, err := cron.ParseStandard(sched.Interval)
	if err != nil {
		return false, backuperr.Wrap(backuperr.KindConfig, "parse schedule interval", err)
	}
	return !now.Before(expr.Next(*sched.LastRunAt)), nil
}
