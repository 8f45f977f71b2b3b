package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sokrates1989/backup-restore/internal/api/request"
	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/destination"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/platform"
	"github.com/Sokrates1989/backup-restore/internal/secret"
)

type Destination struct {
	svc            *core.DestinationService
	secrets        secret.Resolver
	connectTimeout time.Duration

	// openStore is swapped in tests.
	openStore func(dest *model.Destination, secret string) (destination.Store, error)
}

func NewDestination(svc *core.DestinationService, secrets secret.Resolver, connectTimeout time.Duration) *Destination {
	return &Destination{
		svc:            svc,
		secrets:        secrets,
		connectTimeout: connectTimeout,
		openStore:      destination.Open,
	}
}

func (h *Destination) List(w http.ResponseWriter, r *http.Request) {
	dests, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, dests)
}

func (h *Destination) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateDestination
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	dest := &model.Destination{
		ID:        platform.NewID(),
		Name:      req.Name,
		Kind:      req.Kind,
		Host:      req.Host,
		Port:      req.Port,
		Path:      req.Path,
		Bucket:    req.Bucket,
		Region:    req.Region,
		Endpoint:  req.Endpoint,
		Username:  req.Username,
		SecretRef: req.SecretRef,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.svc.Create(r.Context(), dest); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, dest)
}

func (h *Destination) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	dest, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, dest)
}

func (h *Destination) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateDestination
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	dest, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != nil {
		dest.Name = *req.Name
	}
	if req.Host != nil {
		dest.Host = *req.Host
	}
	if req.Port != nil {
		dest.Port = *req.Port
	}
	if req.Path != nil {
		dest.Path = *req.Path
	}
	if req.Bucket != nil {
		dest.Bucket = *req.Bucket
	}
	if req.Region != nil {
		dest.Region = *req.Region
	}
	if req.Endpoint != nil {
		dest.Endpoint = *req.Endpoint
	}
	if req.Username != nil {
		dest.Username = *req.Username
	}
	if req.SecretRef != nil {
		dest.SecretRef = *req.SecretRef
	}
	if req.Active != nil {
		dest.Active = *req.Active
	}

	if err := h.svc.Update(r.Context(), dest); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, dest)
}

// Test verifies an unsaved destination configuration by opening the store
// and listing it, so credentials can be checked before the destination is
// created.
func (h *Destination) Test(w http.ResponseWriter, r *http.Request) {
	var req request.CreateDestination
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidate := &model.Destination{
		Name:      req.Name,
		Kind:      req.Kind,
		Host:      req.Host,
		Port:      req.Port,
		Path:      req.Path,
		Bucket:    req.Bucket,
		Region:    req.Region,
		Endpoint:  req.Endpoint,
		Username:  req.Username,
		SecretRef: req.SecretRef,
	}

	destSecret, err := h.secrets.Resolve(candidate.SecretRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	store, err := h.openStore(candidate, destSecret)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.connectTimeout)
	defer cancel()
	if _, err := store.List(ctx); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Destination) Delete(w http.ResponseWriter, r *http.Request) {
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
