package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/scheduler"
	"github.com/flurbudurbur/Hiatus/pkg/errors"
)

type encoder struct{}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func (e encoder) StatusResponse(ctx context.Context, w http.ResponseWriter, response interface{}, status int) {
	if response != nil {
		e.writeJSON(w, response, status)
		return
	}

	w.WriteHeader(status)
}

func (e encoder) StatusCreatedData(w http.ResponseWriter, data interface{}) {
	e.writeJSON(w, data, http.StatusCreated)
}

func (e encoder) StatusError(w http.ResponseWriter, status int, message string) {
	e.writeJSON(w, errorResponse{Message: message, Status: status}, status)
}

// Error writes err with the status its domain error maps to.
func (e encoder) Error(w http.ResponseWriter, err error) {
	status := statusFor(err)
	e.StatusError(w, status, err.Error())
}

func (e encoder) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, scheduler.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrLifecycleWindowExpired),
		errors.Is(err, domain.ErrAccountDeletionPeriodExceeded),
		errors.Is(err, domain.ErrOwnerInactive),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedKind), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
