package handler

import (
	"net/http"
	"strings"

	"github.com/Sokrates1989/backup-restore/internal/api/response"
	"github.com/Sokrates1989/backup-restore/internal/backuperr"
)

// writeServiceError maps classified errors to HTTP statuses. Config errors
// about missing entities map to 404, other config errors to 400, lock
// contention to 409.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case backuperr.Is(err, backuperr.KindLockContention):
		response.WriteError(w, http.StatusConflict, err.Error())
	case backuperr.Is(err, backuperr.KindConfig):
		if strings.Contains(err.Error(), "not found") {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case backuperr.Is(err, backuperr.KindConnection), backuperr.Is(err, backuperr.KindToolUnavailable):
		response.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
