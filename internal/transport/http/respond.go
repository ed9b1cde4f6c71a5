package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/model"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Total   *int64 `json:"total,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Success: true, Data: data})
}

func writeList(w http.ResponseWriter, data any, total int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response{Success: true, Data: data, Total: &total})
}

// writeError maps the engine's error kinds onto HTTP statuses. This mapping
// lives only here; the services never see transport concerns.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		validation *model.ValidationError
		slot       *model.SlotUnavailableError
		transition *model.InvalidStateTransitionError
		notFound   *model.NotFoundError
		conflict   *model.ConflictError
	)

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
		message = validation.Error()
	case errors.As(err, &slot):
		status = http.StatusConflict
		message = slot.Error()
	case errors.As(err, &transition):
		status = http.StatusConflict
		message = transition.Error()
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		message = notFound.Error()
	case errors.As(err, &conflict):
		status = http.StatusConflict
		message = conflict.Error()
	default:
		// Persistence and unexpected failures stay opaque to the caller.
		logger.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Success: false, Error: message})
}
