package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/config"
	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/internal/metrics"
	"github.com/flurbudurbur/Hiatus/internal/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type authorizer interface {
	HasElevatedRole(ctx context.Context, callerID string) (bool, error)
}

type lifecycleService interface {
	Deactivate(ctx context.Context, kind domain.EntityKind, id string, callerID string, now time.Time) (*domain.Entity, error)
	Reactivate(ctx context.Context, kind domain.EntityKind, id string, callerID string, now time.Time) (*domain.Entity, error)
	EnqueueRestore(ctx context.Context, accountID string, now time.Time) (*domain.RestoreTask, error)
	Status(ctx context.Context, kind domain.EntityKind, id string, now time.Time) (*domain.LifecycleStatus, error)
}

type accountService interface {
	RegisterAccount(ctx context.Context, handle string, role domain.Role) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}

type contentService interface {
	CreatePost(ctx context.Context, accountID string, title string, body string) (*domain.Post, error)
	CreateComment(ctx context.Context, accountID string, postID string, body string) (*domain.Comment, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
}

type jobService interface {
	RunNow(ctx context.Context, id string) (*domain.SweepReport, error)
	GetNextRun(id string) (time.Time, error)
	Jobs() []scheduler.JobInfo
}

type Server struct {
	log zerolog.Logger
	sse *sse.Server
	db  DBPinger

	config  *config.AppConfig
	version string
	now     func() time.Time

	authz            authorizer
	lifecycleService lifecycleService
	accountService   accountService
	contentService   contentService
	jobService       jobService

	readinessChecks []ReadinessCheck

	httpServer *http.Server
}

func NewServer(
	log logger.Logger,
	config *config.AppConfig,
	sse *sse.Server,
	db DBPinger,
	version string,
	authz authorizer,
	lifecycleSvc lifecycleService,
	accountSvc accountService,
	contentSvc contentService,
	jobSvc jobService,
) *Server {
	return &Server{
		log:              log.With().Str("module", "http").Logger(),
		config:           config,
		sse:              sse,
		db:               db,
		version:          version,
		now:              time.Now,
		authz:            authz,
		lifecycleService: lifecycleSvc,
		accountService:   accountSvc,
		contentService:   contentSvc,
		jobService:       jobSvc,
	}
}

// AddReadinessCheck adds a dependency to /api/healthz/readiness next to the
// database. Call it before Open.
func (s *Server) AddReadinessCheck(name string, check func(ctx context.Context) error) {
	s.readinessChecks = append(s.readinessChecks, ReadinessCheck{Name: name, Check: check})
}

// Open listens on the configured address and serves until Shutdown.
func (s *Server) Open() error {
	addr := fmt.Sprintf("%v:%v", s.config.Config.Server.Host, s.config.Config.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Msgf("Starting server. Listening on %s", listener.Addr().String())

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(&s.log))
	r.Use(metrics.Instrument)

	c := cors.New(cors.Options{
		AllowCredentials:   true,
		AllowedMethods:     []string{"HEAD", "OPTIONS", "GET", "POST"},
		AllowedHeaders:     []string{"Content-Type", CallerHeader},
		AllowOriginFunc:    func(origin string) bool { return true },
		OptionsPassthrough: true,
		Debug:              false,
	})

	r.Use(c.Handler)

	encoder := encoder{}

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/healthz", newHealthHandler(encoder, s.db, s.readinessChecks...).Routes)

		// registration happens before the caller has an identity
		r.Post("/accounts", newAccountHandler(encoder, s.accountService).register)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireCaller)

			r.Route("/config", newConfigHandler(encoder, s.config, s.version).Routes)

			lifecycle := newLifecycleHandler(encoder, s.lifecycleService, s.now)
			accounts := newAccountHandler(encoder, s.accountService)
			content := newContentHandler(encoder, s.contentService)

			r.Route("/accounts/{id}", func(r chi.Router) {
				r.Get("/", accounts.get)
				lifecycle.Routes(domain.KindAccount)(r)
			})

			r.Post("/posts", content.createPost)
			r.Route("/posts/{id}", func(r chi.Router) {
				r.Get("/", content.getPost)
				lifecycle.Routes(domain.KindPost)(r)
			})

			r.Post("/comments", content.createComment)
			r.Route("/comments/{id}", func(r chi.Router) {
				r.Get("/", content.getComment)
				lifecycle.Routes(domain.KindComment)(r)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.RequireElevated)
				newAdminHandler(encoder, s.jobService, s.lifecycleService, s.now).Routes(r)
				r.Route("/logs", newLogsHandler(s.config).Routes)
			})

			if s.sse != nil {
				s.sse.Headers = map[string]string{
					"Content-Type":      "text/event-stream",
					"Cache-Control":     "no-cache",
					"Connection":        "keep-alive",
					"X-Accel-Buffering": "no",
				}
				r.Handle("/events", s.sse)
			}
		})
	})

	return r
}
