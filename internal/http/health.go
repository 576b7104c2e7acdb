package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const readinessTimeout = 3 * time.Second

// DBPinger defines an interface for types that can be pinged.
type DBPinger interface {
	Ping() error
}

// ReadinessCheck is one dependency the service cannot work without.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type healthHandler struct {
	encoder encoder
	checks  []ReadinessCheck
}

// newHealthHandler always checks the database first. extra checks, such as
// the valkey restore queue, run after it.
func newHealthHandler(encoder encoder, db DBPinger, extra ...ReadinessCheck) *healthHandler {
	checks := make([]ReadinessCheck, 0, len(extra)+1)
	if db != nil {
		checks = append(checks, ReadinessCheck{
			Name:  "database",
			Check: func(context.Context) error { return db.Ping() },
		})
	}

	return &healthHandler{
		encoder: encoder,
		checks:  append(checks, extra...),
	}
}

func (h healthHandler) Routes(r chi.Router) {
	r.Get("/liveness", h.handleLiveness)
	r.Get("/readiness", h.handleReadiness)
}

func (h healthHandler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h healthHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := readinessResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			resp.Checks[c.Name] = "unavailable: " + err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	h.encoder.StatusResponse(ctx, w, resp, status)
}
