package server

import (
	"context"
	"sync"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/internal/restore"
	"github.com/flurbudurbur/Hiatus/internal/scheduler"

	"github.com/rs/zerolog"
)

type restoreRunner interface {
	Start(handler restore.Handler) error
	Stop()
}

type httpServer interface {
	Shutdown(ctx context.Context) error
}

// Server owns the background parts of the process: the sweep scheduler and
// the restore workers.
type Server struct {
	log    zerolog.Logger
	config *domain.Config

	scheduler scheduler.Service
	runner    restoreRunner
	restore   restore.Handler

	lock    sync.Mutex
	started bool
}

func NewServer(log logger.Logger, config *domain.Config, scheduler scheduler.Service, runner restoreRunner, handler restore.Handler) *Server {
	return &Server{
		log:       log.With().Str("module", "server").Logger(),
		config:    config,
		scheduler: scheduler,
		runner:    runner,
		restore:   handler,
	}
}

// Start recovers and starts the restore workers before the sweeps are
// scheduled.
func (s *Server) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.runner.Start(s.restore); err != nil {
		return err
	}

	if err := s.scheduler.Start(); err != nil {
		s.runner.Stop()
		return err
	}

	s.started = true

	s.log.Info().
		Int("recovery_window_days", s.config.Lifecycle.RecoveryWindowDays).
		Str("restore_queue", s.config.Restore.Queue).
		Msg("lifecycle services started")

	return nil
}

// Shutdown stops accepting requests, waits for running sweeps and drains the
// restore workers.
func (s *Server) Shutdown(ctx context.Context, http httpServer) {
	s.log.Info().Msg("Shutting down server")

	if http != nil {
		if err := http.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("http server did not shut down cleanly")
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.started {
		return
	}

	s.scheduler.Stop()
	s.runner.Stop()
	s.started = false
}
