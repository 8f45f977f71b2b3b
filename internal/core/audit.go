package core

import (
	"context"
	"fmt"

	"github.com/Sokrates1989/backup-restore/internal/model"
)

// AuditService appends to and queries the append-only audit trail. Entries
// are never updated or deleted.
type AuditService struct {
	db DB
}

func NewAuditService(db DB) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) Append(ctx context.Context, event *model.AuditEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_events (actor, operation, resource_type, resource_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		event.Actor, event.Operation, event.ResourceType, event.ResourceID, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *AuditService) List(ctx context.Context, filter model.AuditFilter, limit int) ([]model.AuditEvent, error) {
	query := `SELECT id, actor, operation, resource_type, resource_id, detail, created_at
	          FROM audit_events WHERE 1=1`
	var args []any
	argIdx := 1

	appendArg := func(clause string, value any) {
		query += fmt.Sprintf(clause, argIdx)
		args = append(args, value)
		argIdx++
	}

	if filter.ResourceType != "" {
		appendArg(` AND resource_type = $%d`, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		appendArg(` AND resource_id = $%d`, filter.ResourceID)
	}
	if filter.Operation != "" {
		appendArg(` AND operation = $%d`, filter.Operation)
	}
	if filter.Actor != "" {
		appendArg(` AND actor = $%d`, filter.Actor)
	}
	if filter.Since != nil {
		appendArg(` AND created_at >= $%d`, *filter.Since)
	}
	if filter.Until != nil {
		appendArg(` AND created_at <= $%d`, *filter.Until)
	}

	query += ` ORDER BY id DESC`
	if limit <= 0 {
		limit = 100
	}
	appendArg(` LIMIT $%d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.Actor, &e.Operation, &e.ResourceType,
			&e.ResourceID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
