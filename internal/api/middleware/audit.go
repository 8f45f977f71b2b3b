package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// AuditLogger is an async writer for the append-only audit trail. Entries
// for configuration changes are recorded here; run lifecycle events are
// appended by the orchestrator itself.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	ch     chan auditEntry
}

type auditEntry struct {
	Actor        string
	Operation    string
	ResourceType string
	ResourceID   *string
	Detail       *string
}

func NewAuditLogger(pool *pgxpool.Pool, logger zerolog.Logger) *AuditLogger {
	al := &AuditLogger{
		pool:   pool,
		logger: logger,
		ch:     make(chan auditEntry, 1024),
	}
	go al.drain()
	return al
}

func (al *AuditLogger) drain() {
	for entry := range al.ch {
		// context.Background since this is async
		_, err := al.pool.Exec(context.Background(),
			`INSERT INTO audit_events (actor, operation, resource_type, resource_id, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5, now())`,
			entry.Actor, entry.Operation, entry.ResourceType, entry.ResourceID, entry.Detail,
		)
		if err != nil {
			al.logger.Error().Err(err).Msg("failed to write audit event")
		}
	}
}

// Close drains remaining entries and closes the channel.
func (al *AuditLogger) Close() {
	close(al.ch)
}

var methodOperations = map[string]string{
	http.MethodPost:   "created",
	http.MethodPut:    "updated",
	http.MethodDelete: "deleted",
}

// Middleware records successful mutating API requests to the audit trail.
func (al *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operation, mutating := methodOperations[r.Method]
		if !mutating {
			next.ServeHTTP(w, r)
			return
		}

		// Read and re-buffer the request body.
		var bodyBytes []byte
		if r.Body != nil {
			bodyBytes, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// Failed requests changed nothing; the trail records effects only.
		if sw.status >= http.StatusBadRequest {
			return
		}

		resourceType, resourceID := extractResource(r.URL.Path)
		if resourceType == "" {
			return
		}

		actor := "anonymous"
		if identity := GetIdentity(r.Context()); identity != nil {
			actor = identity.Name
		}

		var detail *string
		if len(bodyBytes) > 0 && json.Valid(bodyBytes) {
			d := string(sanitizeBody(bodyBytes))
			detail = &d
		}

		select {
		case al.ch <- auditEntry{
			Actor:        actor,
			Operation:    operation,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Detail:       detail,
		}:
		default:
			al.logger.Warn().Msg("audit buffer full, dropping entry")
		}
	})
}

// extractResource pulls the last resource type and optional ID from the
// path, e.g. /api/v1/targets/abc -> ("targets", "abc") and
// /api/v1/targets/abc/backups -> ("backups", nil).
func extractResource(path string) (string, *string) {
	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")

	var resourceType string
	var resourceID *string
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i%2 == 0 {
			resourceType = part
			resourceID = nil
		} else {
			p := part
			resourceID = &p
		}
	}
	return resourceType, resourceID
}

// sensitiveFields are redacted from audit details.
var sensitiveFields = map[string]bool{
	"password": true, "secret": true, "api_key": true, "token": true, "key": true,
}

func sanitizeBody(body []byte) json.RawMessage {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}
	for k := range data {
		if sensitiveFields[k] {
			data[k] = "[REDACTED]"
		}
	}
	sanitized, _ := json.Marshal(data)
	return sanitized
}
