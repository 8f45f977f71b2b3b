package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

type DestinationService struct {
	db DB
}

func NewDestinationService(db DB) *DestinationService {
	return &DestinationService{db: db}
}

const destinationColumns = `id, name, kind, host, port, path, bucket, region, endpoint, username, secret_ref, active, created_at, updated_at`

func scanDestination(row pgx.Row, d *model.Destination) error {
	return row.Scan(&d.ID, &d.Name, &d.Kind, &d.Host, &d.Port, &d.Path, &d.Bucket,
		&d.Region, &d.Endpoint, &d.Username, &d.SecretRef, &d.Active, &d.CreatedAt, &d.UpdatedAt)
}

func (s *DestinationService) Create(ctx context.Context, dest *model.Destination) error {
	if !model.ValidDestinationKind(dest.Kind) {
		return backuperr.Newf(backuperr.KindConfig, "unknown destination kind %q", dest.Kind)
	}
	if dest.ID == model.LocalDestinationID {
		return backuperr.Newf(backuperr.KindConfig, "%q is reserved for the implicit local destination", dest.ID)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO destinations (id, name, kind, host, port, path, bucket, region, endpoint, username, secret_ref, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		dest.ID, dest.Name, dest.Kind, dest.Host, dest.Port, dest.Path, dest.Bucket,
		dest.Region, dest.Endpoint, dest.Username, dest.SecretRef, dest.Active,
		dest.CreatedAt, dest.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert destination: %w", err)
	}
	return nil
}

func (s *DestinationService) GetByID(ctx context.Context, id string) (*model.Destination, error) {
	var d model.Destination
	err := scanDestination(s.db.QueryRow(ctx,
		`SELECT `+destinationColumns+` FROM destinations WHERE id = $1`, id), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backuperr.Newf(backuperr.KindConfig, "destination %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get destination %s: %w", id, err)
	}
	return &d, nil
}

func (s *DestinationService) List(ctx context.Context) ([]model.Destination, error) {
	rows, err := s.db.Query(ctx, `SELECT `+destinationColumns+` FROM destinations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	var dests []model.Destination
	for rows.Next() {
		var d model.Destination
		if err := scanDestination(rows, &d); err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		dests = append(dests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destinations: %w", err)
	}
	return dests, nil
}

func (s *DestinationService) Update(ctx context.Context, dest *model.Destination) error {
	if !model.ValidDestinationKind(dest.Kind) {
		return backuperr.Newf(backuperr.KindConfig, "unknown destination kind %q", dest.Kind)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE destinations SET name = $1, kind = $2, host = $3, port = $4, path = $5,
		        bucket = $6, region = $7, endpoint = $8, username = $9, secret_ref = $10,
		        active = $11, updated_at = now()
		 WHERE id = $12`,
		dest.Name, dest.Kind, dest.Host, dest.Port, dest.Path, dest.Bucket,
		dest.Region, dest.Endpoint, dest.Username, dest.SecretRef, dest.Active, dest.ID,
	)
	if err != nil {
		return fmt.Errorf("update destination %s: %w", dest.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return backuperr.Newf(backuperr.KindConfig, "destination %s not found", dest.ID)
	}
	return nil
}

func (s *DestinationService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM destinations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete destination %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return backuperr.Newf(backuperr.KindConfig, "destination %s not found", id)
	}
	return nil
}
