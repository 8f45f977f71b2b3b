package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/orchestrator"
)

type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules []model.Schedule
	stamped   map[string]time.Time
}

func (s *fakeScheduleStore) ListActive(context.Context) ([]model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out, nil
}

func (s *fakeScheduleStore) SetLastRun(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stamped == nil {
		s.stamped = make(map[string]time.Time)
	}
	s.stamped[id] = at
	for i := range s.schedules {
		if s.schedules[i].ID == id {
			t := at
			s.schedules[i].LastRunAt = &t
		}
	}
	return nil
}

type fakeRunner struct {
	mu         sync.Mutex
	backups    []orchestrator.BackupParams
	retentions []string
	backupErr  error
	runStatus  string
	delay      time.Duration
}

func (r *fakeRunner) ExecuteBackup(_ context.Context, params orchestrator.BackupParams) (*model.Run, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backupErr != nil {
		return nil, r.backupErr
	}
	status := r.runStatus
	if status == "" {
		status = model.RunSucceeded
	}
	r.backups = append(r.backups, params)
	return &model.Run{ID: "run-1", Status: status, TargetID: params.TargetID}, nil
}

func (r *fakeRunner) ApplyRetention(_ context.Context, targetID, _ string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retentions = append(r.retentions, targetID)
	return nil
}

func at(t time.Time) *time.Time { return &t }

func newScheduler(store *fakeScheduleStore, runner *fakeRunner, now time.Time) *Scheduler {
	s := New(store, runner, zerolog.Nop(), time.Minute)
	s.now = func() time.Time { return now }
	return s
}

// tick runs one evaluation and waits for the dispatched runs to finish.
func tick(s *Scheduler, ctx context.Context) {
	s.Tick(ctx)
	s.wg.Wait()
}

func TestTick_OverdueDailyFiresOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-1", TargetID: "t-orders", DestinationID: "local",
		Interval: model.IntervalDaily, RetentionDays: 7, Active: true,
		LastRunAt: at(now.Add(-25 * time.Hour)),
	}}}
	runner := &fakeRunner{}
	s := newScheduler(store, runner, now)

	tick(s, context.Background())

	// One catch-up run, regardless of how far behind the schedule is.
	require.Len(t, runner.backups, 1)
	assert.Equal(t, "t-orders", runner.backups[0].TargetID)
	assert.Equal(t, "schedule:sched-1", runner.backups[0].TriggeredBy)
	assert.Equal(t, now, store.stamped["sched-1"])
	assert.Equal(t, []string{"t-orders"}, runner.retentions)

	// The stamp at enqueue makes the next tick a no-op.
	tick(s, context.Background())
	assert.Len(t, runner.backups, 1)
}

func TestTick_NotYetDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-1", TargetID: "t-orders", DestinationID: "local",
		Interval: model.IntervalDaily, Active: true,
		LastRunAt: at(now.Add(-23 * time.Hour)),
	}}}
	runner := &fakeRunner{}

	tick(newScheduler(store, runner, now), context.Background())

	assert.Empty(t, runner.backups)
	assert.Empty(t, store.stamped)
}

func TestTick_NeverRanFiresImmediately(t *testing.T) {
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-1", TargetID: "t-orders", DestinationID: "local",
		Interval: model.IntervalWeekly, Active: true,
	}}}
	runner := &fakeRunner{}

	tick(newScheduler(store, runner, time.Now()), context.Background())

	assert.Len(t, runner.backups, 1)
}

func TestTick_CronInterval(t *testing.T) {
	// Nightly at 03:00; last ran yesterday, now past today's slot.
	now := time.Date(2026, 3, 10, 3, 1, 0, 0, time.UTC)
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-1", TargetID: "t-orders", DestinationID: "local",
		Interval: "0 3 * * *", Active: true,
		LastRunAt: at(time.Date(2026, 3, 9, 3, 0, 0, 0, time.UTC)),
	}}}
	runner := &fakeRunner{}

	tick(newScheduler(store, runner, now), context.Background())
	assert.Len(t, runner.backups, 1)

	// Before the next slot nothing fires.
	later := newScheduler(store, runner, now.Add(time.Hour))
	tick(later, context.Background())
	assert.Len(t, runner.backups, 1)
}

func TestTick_InvalidIntervalSkipped(t *testing.T) {
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-bad", TargetID: "t-orders", DestinationID: "local",
		Interval: "every so often", Active: true,
		LastRunAt: at(time.Now().Add(-48 * time.Hour)),
	}}}
	runner := &fakeRunner{}

	tick(newScheduler(store, runner, time.Now()), context.Background())

	assert.Empty(t, runner.backups)
	assert.Empty(t, store.stamped)
}

func TestTick_DanglingReferenceFlaggedNotDeleted(t *testing.T) {
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-1", TargetID: "t-gone", DestinationID: "local",
		Interval: model.IntervalHourly, Active: true,
	}}}
	runner := &fakeRunner{backupErr: backuperr.New(backuperr.KindConfig, "target t-gone not found")}

	s := newScheduler(store, runner, time.Now())
	tick(s, context.Background())

	assert.Empty(t, runner.backups)
	// The schedule survives for the operator to fix.
	remaining, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestTick_FailedRunSkipsRetention(t *testing.T) {
	store := &fakeScheduleStore{schedules: []model.Schedule{{
		ID: "sched-1", TargetID: "t-orders", DestinationID: "local",
		Interval: model.IntervalHourly, RetentionDays: 7, Active: true,
	}}}
	runner := &fakeRunner{runStatus: model.RunFailed}

	tick(newScheduler(store, runner, time.Now()), context.Background())

	assert.Empty(t, runner.retentions)
}

func TestTick_IndependentTargetsRunConcurrently(t *testing.T) {
	// A slow backup on one target must not delay the other schedules in
	// the same tick.
	store := &fakeScheduleStore{schedules: []model.Schedule{
		{ID: "sched-a", TargetID: "t-a", DestinationID: "local",
			Interval: model.IntervalHourly, Active: true},
		{ID: "sched-b", TargetID: "t-b", DestinationID: "local",
			Interval: model.IntervalHourly, Active: true},
	}}
	runner := &fakeRunner{delay: 150 * time.Millisecond}

	start := time.Now()
	tick(newScheduler(store, runner, time.Now()), context.Background())
	elapsed := time.Since(start)

	require.Len(t, runner.backups, 2)
	assert.Less(t, elapsed, 250*time.Millisecond,
		"two 150ms runs should overlap, not run back-to-back")
}

func TestDue_SymbolicIntervals(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		interval string
		lastAgo  time.Duration
		want     bool
	}{
		{model.IntervalHourly, 61 * time.Minute, true},
		{model.IntervalHourly, 59 * time.Minute, false},
		{model.IntervalDaily, 25 * time.Hour, true},
		{model.IntervalDaily, 23 * time.Hour, false},
		{model.IntervalWeekly, 8 * 24 * time.Hour, true},
		{model.IntervalWeekly, 6 * 24 * time.Hour, false},
		{model.IntervalMonthly, 31 * 24 * time.Hour, true},
		{model.IntervalMonthly, 29 * 24 * time.Hour, false},
	}
	for _, tc := range cases {
		sched := &model.Schedule{Interval: tc.interval, LastRunAt: at(now.Add(-tc.lastAgo))}
		due, err := Due(sched, now)
		require.NoError(t, err)
		assert.Equal(t, tc.want, due, "%s after %s", tc.interval, tc.lastAgo)
	}
}
