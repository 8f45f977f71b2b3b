// Package core implements the persisted configuration registries and run
// records. Each entity has a single writer; services issue plain SQL against
// the state database.
package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the services need.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Services bundles all registry services sharing one database.
type Services struct {
	Targets      *TargetService
	Destinations *DestinationService
	Schedules    *ScheduleService
	Runs         *RunService
	Audit        *AuditService
	APIKeys      *APIKeyService
}

func NewServices(db DB) *Services {
	return &Services{
		Targets:      NewTargetService(db),
		Destinations: NewDestinationService(db),
		Schedules:    NewScheduleService(db),
		Runs:         NewRunService(db),
		Audit:        NewAuditService(db),
		APIKeys:      NewAPIKeyService(db),
	}
}
