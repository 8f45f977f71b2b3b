package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Sokrates1989/backup-restore/internal/api/request"
	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/destination"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/secret"
)

// Artifact serves stored backup artifacts on configured destinations. The
// implicit "local" destination ID addresses the local backup directory.
type Artifact struct {
	svc      *core.DestinationService
	secrets  secret.Resolver
	localDir string

	// openStore is swapped in tests.
	openStore func(dest *model.Destination, secret string) (destination.Store, error)
}

func NewArtifact(svc *core.DestinationService, secrets secret.Resolver, localDir string) *Artifact {
	return &Artifact{svc: svc, secrets: secrets, localDir: localDir, openStore: destination.Open}
}

func (h *Artifact) open(r *http.Request, destinationID string) (destination.Store, error) {
	var dest *model.Destination
	if destinationID == model.LocalDestinationID {
		dest = model.LocalDestination(h.localDir)
	} else {
		var err error
		dest, err = h.svc.GetByID(r.Context(), destinationID)
		if err != nil {
			return nil, err
		}
	}
	destSecret, err := h.secrets.Resolve(dest.SecretRef)
	if err != nil {
		return nil, err
	}
	return h.openStore(dest, destSecret)
}

// List returns the artifacts stored on a destination.
func (h *Artifact) List(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	store, err := h.open(r, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	artifacts, err := store.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, artifacts)
}

// Download streams one artifact to the client.
func (h *Artifact) Download(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, err := request.RequireID(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	store, err := h.open(r, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rc, err := store.Get(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	io.Copy(w, rc)
}

// Delete removes one artifact from a destination.
func (h *Artifact) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, err := request.RequireID(chi.URLParam(r, "name"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	store, err := h.open(r, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := store.Delete(r.Context(), name); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
