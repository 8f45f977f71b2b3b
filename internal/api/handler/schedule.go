package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sokrates1989/backup-restore/internal/api/request"
	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/platform"
)

type Schedule struct {
	svc *core.ScheduleService
}

func NewSchedule(svc *core.ScheduleService) *Schedule {
	return &Schedule{svc: svc}
}

func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, schedules)
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	destinationID := req.DestinationID
	if destinationID == "" {
		destinationID = model.LocalDestinationID
	}

	now := time.Now()
	sched := &model.Schedule{
		ID:            platform.NewID(),
		Name:          req.Name,
		TargetID:      req.TargetID,
		DestinationID: destinationID,
		Interval:      req.Interval,
		RetentionDays: req.RetentionDays,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.svc.Create(r.Context(), sched); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, sched)
}

func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sched)
}

func (h *Schedule) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.TargetID != nil {
		sched.TargetID = *req.TargetID
	}
	if req.DestinationID != nil {
		sched.DestinationID = *req.DestinationID
	}
	if req.Interval != nil {
		sched.Interval = *req.Interval
	}
	if req.RetentionDays != nil {
		sched.RetentionDays = *req.RetentionDays
	}
	if req.Active != nil {
		sched.Active = *req.Active
	}

	if err := h.svc.Update(r.Context(), sched); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sched)
}

func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
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
