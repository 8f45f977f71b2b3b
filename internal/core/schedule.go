package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

type ScheduleService struct {
	db DB
}

func NewScheduleService(db DB) *ScheduleService {
	return &ScheduleService{db: db}
}

const scheduleColumns = `id, name, target_id, destination_id, interval_expr, retention_days, active, last_run_at, created_at, updated_at`

func scanSchedule(row pgx.Row, sc *model.Schedule) error {
	return row.Scan(&sc.ID, &sc.Name, &sc.TargetID, &sc.DestinationID, &sc.Interval,
		&sc.RetentionDays, &sc.Active, &sc.LastRunAt, &sc.CreatedAt, &sc.UpdatedAt)
}

// ValidateInterval accepts the symbolic intervals or a standard cron
// expression.
func ValidateInterval(interval string) error {
	switch interval {
	case model.IntervalHourly, model.IntervalDaily, model.IntervalWeekly, model.IntervalMonthly:
		return nil
	}
	if _, err := cron.ParseStandard(interval); err != nil {
		return backuperr.Newf(backuperr.KindConfig, "interval %q is neither symbolic nor a cron expression", interval)
	}
	return nil
}

func (s *ScheduleService) Create(ctx context.Context, sched *model.Schedule) error {
	if err := ValidateInterval(sched.Interval); err != nil {
		return err
	}
	if sched.RetentionDays < 0 {
		return backuperr.New(backuperr.KindConfig, "retention_days must not be negative")
	}
	if err := s.checkReferences(ctx, sched); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO schedules (id, name, target_id, destination_id, interval_expr, retention_days, active, last_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sched.ID, sched.Name, sched.TargetID, sched.DestinationID, sched.Interval,
		sched.RetentionDays, sched.Active, sched.LastRunAt, sched.CreatedAt, sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// checkReferences verifies target and destination exist and are active. The
// implicit local destination always passes.
func (s *ScheduleService) checkReferences(ctx context.Context, sched *model.Schedule) error {
	var active bool
	err := s.db.QueryRow(ctx, `SELECT active FROM targets WHERE id = $1`, sched.TargetID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return backuperr.Newf(backuperr.KindConfig, "schedule references missing target %s", sched.TargetID)
	}
	if err != nil {
		return fmt.Errorf("check schedule target: %w", err)
	}
	if !active {
		return backuperr.Newf(backuperr.KindConfig, "schedule references inactive target %s", sched.TargetID)
	}

	if sched.DestinationID == model.LocalDestinationID {
		return nil
	}
	err = s.db.QueryRow(ctx, `SELECT active FROM destinations WHERE id = $1`, sched.DestinationID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return backuperr.Newf(backuperr.KindConfig, "schedule references missing destination %s", sched.DestinationID)
	}
	if err != nil {
		return fmt.Errorf("check schedule destination: %w", err)
	}
	if !active {
		return backuperr.Newf(backuperr.KindConfig, "schedule references inactive destination %s", sched.DestinationID)
	}
	return nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var sc model.Schedule
	err := scanSchedule(s.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id), &sc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backuperr.Newf(backuperr.KindConfig, "schedule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return &sc, nil
}

func (s *ScheduleService) List(ctx context.Context) ([]model.Schedule, error) {
	return s.list(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY name`)
}

// ListActive returns schedules eligible for evaluation.
func (s *ScheduleService) ListActive(ctx context.Context) ([]model.Schedule, error) {
	return s.list(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE active ORDER BY name`)
}

func (s *ScheduleService) list(ctx context.Context, query string) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var sc model.Schedule
		if err := scanSchedule(rows, &sc); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) Update(ctx context.Context, sched *model.Schedule) error {
	if err := ValidateInterval(sched.Interval); err != nil {
		return err
	}
	if err := s.checkReferences(ctx, sched); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE schedules SET name = $1, target_id = $2, destination_id = $3,
		        interval_expr = $4, retention_days = $5, active = $6, updated_at = now()
		 WHERE id = $7`,
		sched.Name, sched.TargetID, sched.DestinationID, sched.Interval,
		sched.RetentionDays, sched.Active, sched.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", sched.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return backuperr.Newf(backuperr.KindConfig, "schedule %s not found", sched.ID)
	}
	return nil
}

// SetLastRun stamps last_run_at. Called optimistically at enqueue time so a
// slow run cannot be enqueued twice.
func (s *ScheduleService) SetLastRun(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE schedules SET last_run_at = $1, updated_at = now() WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("set schedule %s last_run_at: %w", id, err)
	}
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return backuperr.Newf(backuperr.KindConfig, "schedule %s not found", id)
	}
	return nil
}
