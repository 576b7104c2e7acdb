package http

import (
	"net/http"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type createCommentRequest struct {
	PostID string `json:"post_id"`
	Body   string `json:"body"`
}

type contentHandler struct {
	encoder encoder
	service contentService
}

func newContentHandler(encoder encoder, service contentService) *contentHandler {
	return &contentHandler{
		encoder: encoder,
		service: service,
	}
}

// createPost stores a post authored by the caller.
func (h contentHandler) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.encoder.Error(w, errors.Wrap(domain.ErrInvalidInput, "invalid request body: %v", err))
		return
	}

	post, err := h.service.CreatePost(r.Context(), CallerFromContext(r.Context()), req.Title, req.Body)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusCreatedData(w, post)
}

func (h contentHandler) createComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.encoder.Error(w, errors.Wrap(domain.ErrInvalidInput, "invalid request body: %v", err))
		return
	}

	comment, err := h.service.CreateComment(r.Context(), CallerFromContext(r.Context()), req.PostID, req.Body)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusCreatedData(w, comment)
}

func (h contentHandler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, post, http.StatusOK)
}

func (h contentHandler) getComment(w http.ResponseWriter, r *http.Request) {
	comment, err := h.service.GetComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, comment, http.StatusOK)
}
