package http

import (
	"net/http"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"

	"github.com/go-chi/chi/v5"
)

type lifecycleHandler struct {
	encoder encoder
	service lifecycleService
	now     func() time.Time
}

func newLifecycleHandler(encoder encoder, service lifecycleService, now func() time.Time) *lifecycleHandler {
	return &lifecycleHandler{
		encoder: encoder,
		service: service,
		now:     now,
	}
}

// Routes mounts the lifecycle endpoints of one entity kind below /{id}.
func (h lifecycleHandler) Routes(kind domain.EntityKind) func(r chi.Router) {
	return func(r chi.Router) {
		r.Post("/deactivate", h.deactivate(kind))
		r.Post("/reactivate", h.reactivate(kind))
		r.Get("/lifecycle", h.status(kind))
	}
}

func (h lifecycleHandler) deactivate(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.service.Deactivate(r.Context(), kind, chi.URLParam(r, "id"), CallerFromContext(r.Context()), h.now())
		if err != nil {
			h.encoder.Error(w, err)
			return
		}

		h.encoder.StatusResponse(r.Context(), w, e, http.StatusOK)
	}
}

func (h lifecycleHandler) reactivate(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.service.Reactivate(r.Context(), kind, chi.URLParam(r, "id"), CallerFromContext(r.Context()), h.now())
		if err != nil {
			h.encoder.Error(w, err)
			return
		}

		status := http.StatusOK
		if kind == domain.KindAccount {
			// the owned content is restored in the background
			status = http.StatusAccepted
		}

		h.encoder.StatusResponse(r.Context(), w, e, status)
	}
}

func (h lifecycleHandler) status(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.service.Status(r.Context(), kind, chi.URLParam(r, "id"), h.now())
		if err != nil {
			h.encoder.Error(w, err)
			return
		}

		h.encoder.StatusResponse(r.Context(), w, status, http.StatusOK)
	}
}
