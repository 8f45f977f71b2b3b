package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

type TargetService struct {
	db DB
}

func NewTargetService(db DB) *TargetService {
	return &TargetService{db: db}
}

const targetColumns = `id, name, engine, host, port, database_name, username, secret_ref, active, created_at, updated_at`

func scanTarget(row pgx.Row, t *model.Target) error {
	return row.Scan(&t.ID, &t.Name, &t.Engine, &t.Host, &t.Port, &t.Database,
		&t.Username, &t.SecretRef, &t.Active, &t.CreatedAt, &t.UpdatedAt)
}

func (s *TargetService) Create(ctx context.Context, target *model.Target) error {
	if !model.ValidEngine(target.Engine) {
		return backuperr.Newf(backuperr.KindConfig, "unknown engine kind %q", target.Engine)
	}

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM targets WHERE name = $1 AND active)`, target.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check target name: %w", err)
	}
	if exists {
		return backuperr.Newf(backuperr.KindConfig, "target name %q already in use", target.Name)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO targets (id, name, engine, host, port, database_name, username, secret_ref, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		target.ID, target.Name, target.Engine, target.Host, target.Port, target.Database,
		target.Username, target.SecretRef, target.Active, target.CreatedAt, target.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *TargetService) GetByID(ctx context.Context, id string) (*model.Target, error) {
	var t model.Target
	err := scanTarget(s.db.QueryRow(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = $1`, id), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backuperr.Newf(backuperr.KindConfig, "target %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get target %s: %w", id, err)
	}
	return &t, nil
}

func (s *TargetService) List(ctx context.Context) ([]model.Target, error) {
	rows, err := s.db.Query(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		var t model.Target
		if err := scanTarget(rows, &t); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}
	return targets, nil
}

// Update persists changes to a target. The engine kind is immutable after
// creation; prior artifacts would lose their meaning otherwise.
func (s *TargetService) Update(ctx context.Context, target *model.Target) error {
	existing, err := s.GetByID(ctx, target.ID)
	if err != nil {
		return err
	}
	if existing.Engine != target.Engine {
		return backuperr.Newf(backuperr.KindConfig,
			"engine kind of target %s is immutable (%s)", target.ID, existing.Engine)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE targets SET name = $1, host = $2, port = $3, database_name = $4,
		        username = $5, secret_ref = $6, active = $7, updated_at = now()
		 WHERE id = $8`,
		target.Name, target.Host, target.Port, target.Database,
		target.Username, target.SecretRef, target.Active, target.ID,
	)
	if err != nil {
		return fmt.Errorf("update target %s: %w", target.ID, err)
	}
	return nil
}

func (s *TargetService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return backuperr.Newf(backuperr.KindConfig, "target %s not found", id)
	}
	return nil
}
