package http

import (
	"net/http"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type registerRequest struct {
	Handle string      `json:"handle"`
	Role   domain.Role `json:"role,omitempty"`
}

type accountHandler struct {
	encoder encoder
	service accountService
}

func newAccountHandler(encoder encoder, service accountService) *accountHandler {
	return &accountHandler{
		encoder: encoder,
		service: service,
	}
}

func (h accountHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.encoder.Error(w, errors.Wrap(domain.ErrInvalidInput, "invalid request body: %v", err))
		return
	}

	account, err := h.service.RegisterAccount(r.Context(), req.Handle, req.Role)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusCreatedData(w, account)
}

func (h accountHandler) get(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, account, http.StatusOK)
}
