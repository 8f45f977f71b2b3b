package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Sokrates1989/backup-restore/internal/api/middleware"
	"github.com/Sokrates1989/backup-restore/internal/api/request"
	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/orchestrator"
)

type Run struct {
	svc  *core.RunService
	orch *orchestrator.Orchestrator
}

func NewRun(svc *core.RunService, orch *orchestrator.Orchestrator) *Run {
	return &Run{svc: svc, orch: orch}
}

func actor(r *http.Request) string {
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		return "api_key:" + identity.Name
	}
	return "manual"
}

// TriggerBackup starts a backup run for a target. The run is returned in its
// pending state; progress is observable through GET /runs/{id}.
func (h *Run) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	targetID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// An empty body triggers a plain backup to the local destination.
	var req request.CreateBackup
	if r.ContentLength != 0 {
		if err := request.Decode(r, &req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	run, err := h.orch.StartBackup(r.Context(), orchestrator.BackupParams{
		TargetID:      targetID,
		DestinationID: req.DestinationID,
		TriggeredBy:   actor(r),
		Compress:      req.Compress,
		UseBulkExport: req.UseBulkExport,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, run)
}

// TriggerRestore starts a restore run. A JSON body references a stored
// artifact and runs in the background; any other content type is treated as
// an uploaded artifact stream and restored synchronously.
func (h *Run) TriggerRestore(w http.ResponseWriter, r *http.Request) {
	targetID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req request.CreateRestore
		if err := request.Decode(r, &req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		run, err := h.orch.StartRestore(r.Context(), orchestrator.RestoreParams{
			TargetID:         targetID,
			DestinationID:    req.DestinationID,
			TriggeredBy:      actor(r),
			ArtifactName:     req.ArtifactName,
			SkipSafetyBackup: req.SkipSafetyBackup,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusAccepted, run)
		return
	}

	// Uploaded artifact: the stream only lives as long as the request, so
	// the whole restore happens before responding.
	run, err := h.orch.ExecuteRestore(r.Context(), orchestrator.RestoreParams{
		TargetID:         targetID,
		TriggeredBy:      actor(r),
		Upload:           r.Body,
		SkipSafetyBackup: r.URL.Query().Get("skip_safety_backup") == "true",
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, run)
}

func (h *Run) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)
	q := r.URL.Query()

	runs, err := h.svc.List(r.Context(), core.RunFilter{
		TargetID:    q.Get("target_id"),
		Kind:        q.Get("kind"),
		Status:      q.Get("status"),
		TriggeredBy: q.Get("triggered_by"),
		Limit:       pg.Limit,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, runs)
}

func (h *Run) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, run)
}

// Cancel requests cancellation of an in-flight run.
func (h *Run) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orch.Cancel(id); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
