package handler

import (
	"net/http"
	"time"

	"github.com/Sokrates1989/backup-restore/internal/api/request"
	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

type Audit struct {
	svc *core.AuditService
}

func NewAudit(svc *core.AuditService) *Audit {
	return &Audit{svc: svc}
}

// List returns audit trail entries, newest first, with optional filters on
// resource, operation, actor, and time range.
func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)
	q := r.URL.Query()

	filter := model.AuditFilter{
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Operation:    q.Get("operation"),
		Actor:        q.Get("actor"),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		filter.Until = &t
	}

	events, err := h.svc.List(r.Context(), filter, pg.Limit)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, events)
}
