package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sokrates1989/backup-restore/internal/api/request"
	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/orchestrator"
	"github.com/Sokrates1989/backup-restore/internal/platform"
)

type Target struct {
	svc            *core.TargetService
	orch           *orchestrator.Orchestrator
	connectTimeout time.Duration
}

func NewTarget(svc *core.TargetService, orch *orchestrator.Orchestrator, connectTimeout time.Duration) *Target {
	return &Target{svc: svc, orch: orch, connectTimeout: connectTimeout}
}

func (h *Target) List(w http.ResponseWriter, r *http.Request) {
	targets, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, targets)
}

func (h *Target) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTarget
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	target := &model.Target{
		ID:        platform.NewID(),
		Name:      req.Name,
		Engine:    req.Engine,
		Host:      req.Host,
		Port:      req.Port,
		Database:  req.Database,
		Username:  req.Username,
		SecretRef: req.SecretRef,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.svc.Create(r.Context(), target); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, target)
}

func (h *Target) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, target)
}

func (h *Target) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateTarget
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != nil {
		target.Name = *req.Name
	}
	if req.Host != nil {
		target.Host = *req.Host
	}
	if req.Port != nil {
		target.Port = *req.Port
	}
	if req.Database != nil {
		target.Database = *req.Database
	}
	if req.Username != nil {
		target.Username = *req.Username
	}
	if req.SecretRef != nil {
		target.SecretRef = *req.SecretRef
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	if err := h.svc.Update(r.Context(), target); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, target)
}

func (h *Target) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection checks reachability of the stored target configuration
// without touching any data.
func (h *Target) TestConnection(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.orch.TestTargetConnection(r.Context(), target, h.connectTimeout); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TestCandidate checks reachability of an unsaved target configuration, so
// credentials can be verified before the target is created.
func (h *Target) TestCandidate(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTarget
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidate := &model.Target{
		Name:      req.Name,
		Engine:    req.Engine,
		Host:      req.Host,
		Port:      req.Port,
		Database:  req.Database,
		Username:  req.Username,
		SecretRef: req.SecretRef,
	}
	if err := h.orch.TestTargetConnection(r.Context(), candidate, h.connectTimeout); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns the backend counters the engine driver exposes.
func (h *Target) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.orch.TargetStats(r.Context(), id, h.connectTimeout)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}
