package model

import "time"

// Audit event operations.
const (
	AuditCreated   = "created"
	AuditUpdated   = "updated"
	AuditDeleted   = "deleted"
	AuditRunStart  = "run_started"
	AuditRunFinish = "run_finished"
)

// AuditEvent is one entry of the append-only audit trail. Events are never
// mutated or reordered; they serve history and compliance views, not current
// configuration state.
type AuditEvent struct {
	ID           int64     `json:"id"`
	Actor        string    `json:"actor"`
	Operation    string    `json:"operation"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Detail       *string   `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditFilter narrows audit trail queries.
type AuditFilter struct {
	ResourceType string
	ResourceID   string
	Operation    string
	Actor        string
	Since        *time.Time
	Until        *time.Time
}
