package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type adminHandler struct {
	encoder   encoder
	jobs      jobService
	lifecycle lifecycleService
	now       func() time.Time
}

func newAdminHandler(encoder encoder, jobs jobService, lifecycle lifecycleService, now func() time.Time) *adminHandler {
	return &adminHandler{
		encoder:   encoder,
		jobs:      jobs,
		lifecycle: lifecycle,
		now:       now,
	}
}

func (h adminHandler) Routes(r chi.Router) {
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{name}", h.nextRun)
	r.Post("/jobs/{name}/run", h.runJob)
	r.Post("/accounts/{id}/restore", h.enqueueRestore)
}

func (h adminHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	h.encoder.StatusResponse(r.Context(), w, h.jobs.Jobs(), http.StatusOK)
}

type nextRunResponse struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
}

func (h adminHandler) nextRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	next, err := h.jobs.GetNextRun(name)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, nextRunResponse{Name: name, NextRun: next}, http.StatusOK)
}

// runJob blocks until the sweep is done, or joins the run already in progress.
func (h adminHandler) runJob(w http.ResponseWriter, r *http.Request) {
	report, err := h.jobs.RunNow(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, report, http.StatusOK)
}

func (h adminHandler) enqueueRestore(w http.ResponseWriter, r *http.Request) {
	task, err := h.lifecycle.EnqueueRestore(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, task, http.StatusAccepted)
}
