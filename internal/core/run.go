package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

type RunService struct {
	db DB
}

func NewRunService(db DB) *RunService {
	return &RunService{db: db}
}

const runColumns = `id, kind, target_id, destination_id, triggered_by, status, error_kind, error_detail,
	artifact_name, artifact_size_bytes, safety_backup_run_id, started_at, finished_at, created_at, updated_at`

func scanRun(row pgx.Row, r *model.Run) error {
	return row.Scan(&r.ID, &r.Kind, &r.TargetID, &r.DestinationID, &r.TriggeredBy,
		&r.Status, &r.ErrorKind, &r.ErrorDetail, &r.ArtifactName, &r.ArtifactSizeBytes,
		&r.SafetyBackupRunID, &r.StartedAt, &r.FinishedAt, &r.CreatedAt, &r.UpdatedAt)
}

func (s *RunService) Create(ctx context.Context, run *model.Run) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO runs (id, kind, target_id, destination_id, triggered_by, status,
		        artifact_size_bytes, safety_backup_run_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Kind, run.TargetID, run.DestinationID, run.TriggeredBy,
		run.Status, run.ArtifactSizeBytes, run.SafetyBackupRunID, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// MarkRunning transitions pending -> running. Any other starting state is a
// violated invariant.
func (s *RunService) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE runs SET status = $1, started_at = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		model.RunRunning, startedAt, id, model.RunPending,
	)
	if err != nil {
		return fmt.Errorf("mark run %s running: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not pending", id)
	}
	return nil
}

// MarkSucceeded transitions running -> succeeded and stamps the artifact.
func (s *RunService) MarkSucceeded(ctx context.Context, id, artifactName string, sizeBytes int64, finishedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE runs SET status = $1, artifact_name = $2, artifact_size_bytes = $3,
		        finished_at = $4, updated_at = now()
		 WHERE id = $5 AND status = $6`,
		model.RunSucceeded, artifactName, sizeBytes, finishedAt, id, model.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("mark run %s succeeded: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not running", id)
	}
	return nil
}

// MarkFailed transitions a non-terminal run to failed with its classified
// error. Pending runs may fail directly (lock contention, safety backup
// failure) without ever entering running.
func (s *RunService) MarkFailed(ctx context.Context, id string, kind backuperr.Kind, detail string, finishedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE runs SET status = $1, error_kind = $2, error_detail = $3,
		        finished_at = $4, updated_at = now()
		 WHERE id = $5 AND status IN ($6, $7)`,
		model.RunFailed, string(kind), detail, finishedAt, id, model.RunPending, model.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("mark run %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s is already terminal", id)
	}
	return nil
}

// SetSafetyBackupRun records the safety backup run on a restore run before
// the destructive step begins.
func (s *RunService) SetSafetyBackupRun(ctx context.Context, id, safetyRunID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE runs SET safety_backup_run_id = $1, updated_at = now() WHERE id = $2`,
		safetyRunID, id)
	if err != nil {
		return fmt.Errorf("set run %s safety backup: %w", id, err)
	}
	return nil
}

func (s *RunService) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id), &r)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backuperr.Newf(backuperr.KindConfig, "run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

// RunFilter narrows run listings.
type RunFilter struct {
	TargetID    string
	Kind        string
	Status      string
	TriggeredBy string
	Limit       int
}

func (s *RunService) List(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	argIdx := 1

	appendArg := func(clause string, value any) {
		query += fmt.Sprintf(clause, argIdx)
		args = append(args, value)
		argIdx++
	}

	if filter.TargetID != "" {
		appendArg(` AND target_id = $%d`, filter.TargetID)
	}
	if filter.Kind != "" {
		appendArg(` AND kind = $%d`, filter.Kind)
	}
	if filter.Status != "" {
		appendArg(` AND status = $%d`, filter.Status)
	}
	if filter.TriggeredBy != "" {
		appendArg(` AND triggered_by = $%d`, filter.TriggeredBy)
	}

	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	appendArg(` LIMIT $%d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := scanRun(rows, &r); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListExpired returns succeeded backup runs for the target/destination pair
// finished before the cutoff, oldest first. Runs referenced as another run's
// safety backup are excluded; the sweep must never delete the artifact a
// not-yet-confirmed restore might still need.
func (s *RunService) ListExpired(ctx context.Context, targetID, destinationID string, before time.Time) ([]model.Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE kind = $1 AND status = $2 AND target_id = $3 AND destination_id = $4
		   AND finished_at < $5
		   AND id NOT IN (SELECT safety_backup_run_id FROM runs WHERE safety_backup_run_id IS NOT NULL)
		 ORDER BY finished_at`,
		model.RunKindBackup, model.RunSucceeded, targetID, destinationID, before,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := scanRun(rows, &r); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run record. Callers delete the artifact first; the record
// and its artifact leave together.
func (s *RunService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return backuperr.Newf(backuperr.KindConfig, "run %s not found", id)
	}
	return nil
}
