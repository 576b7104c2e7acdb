package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/account"
	"github.com/flurbudurbur/Hiatus/internal/config"
	"github.com/flurbudurbur/Hiatus/internal/content"
	"github.com/flurbudurbur/Hiatus/internal/database"
	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/events"
	"github.com/flurbudurbur/Hiatus/internal/http"
	"github.com/flurbudurbur/Hiatus/internal/lifecycle"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/internal/metrics"
	"github.com/flurbudurbur/Hiatus/internal/restore"
	"github.com/flurbudurbur/Hiatus/internal/scheduler"
	"github.com/flurbudurbur/Hiatus/internal/server"
	"github.com/flurbudurbur/Hiatus/internal/valkey"

	"github.com/asaskevich/EventBus"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

const shutdownTimeout = 30 * time.Second

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to configuration file")
	pflag.Parse()

	// read config
	cfg := config.New(configPath, version)

	// init new logger
	log := logger.New(cfg.Config)

	// init dynamic config
	cfg.DynamicReload(log)

	metrics.Init(version)

	// setup server-sent-events
	serverEvents := sse.New()
	serverEvents.AutoReplay = false
	serverEvents.CreateStreamWithOpts(logger.StreamLogs, sse.StreamOpts{MaxEntries: 1000, AutoReplay: true})
	serverEvents.CreateStreamWithOpts(events.StreamLifecycle, sse.StreamOpts{MaxEntries: 1000, AutoReplay: true})

	// register SSE writer
	log.RegisterSSEWriter(serverEvents)

	// setup internal eventbus
	bus := EventBus.New()

	// open database connection
	db, err := database.NewDB(cfg.Config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create new db")
	}

	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("could not open db connection")
	}

	log.Info().Msg("Starting Hiatus")
	log.Info().Msgf("Version: %s", version)
	log.Info().Msgf("Commit: %s", commit)
	log.Info().Msgf("Build date: %s", date)
	log.Info().Msgf("Log-level: %s", cfg.Config.Logging.Level)
	log.Info().Msgf("Using database: %s", db.Driver)

	// setup repos
	var (
		accountRepo    = database.NewAccountRepo(log, db)
		contentRepo    = database.NewContentRepo(log, db)
		lifecycleStore = database.NewLifecycleStore(log, db)
	)

	// restore queue
	var (
		restoreQueue  domain.RestoreQueue
		valkeyService *valkey.Service
	)
	switch cfg.Config.Restore.Queue {
	case domain.RestoreQueueValkey:
		valkeyService, err = valkey.NewService(cfg.Config.Valkey)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create new valkey service")
		}
		if err := valkeyService.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Str("address", cfg.Config.Valkey.Address).Msg("valkey is unreachable")
		}
		restoreQueue = valkey.NewRestoreQueue(log, valkeyService)
		log.Info().Msg("Valkey restore queue initialized")
	default:
		restoreQueue = restore.NewMemoryQueue(cfg.Config.Restore.QueueSize)
		log.Warn().Msg("using the in-memory restore queue, queued restores are lost on restart")
	}

	restoreRunner := restore.NewRunner(log, restoreQueue, cfg.Config.Restore, bus)

	// setup services
	var (
		clock             = lifecycle.NewClock(cfg.Config.Lifecycle.RecoveryWindowDays)
		authorizer        = lifecycle.NewRoleAuthorizer(accountRepo)
		lifecycleService  = lifecycle.NewService(log, lifecycleStore, authorizer, clock, restoreRunner, bus, cfg.Config.Restore.BatchSize)
		accountService    = account.NewService(log, accountRepo)
		contentService    = content.NewService(log, contentRepo, accountRepo)
		schedulingService = scheduler.NewService(log, cfg.Config, lifecycleStore, clock, bus)
	)

	// register event subscribers
	events.NewSubscribers(log, bus, serverEvents)

	srv := server.NewServer(log, cfg.Config, schedulingService, restoreRunner, lifecycleService.RestoreOwnedContentWithinWindow)
	if err := srv.Start(); err != nil {
		log.Fatal().Stack().Err(err).Msg("could not start server")
		return
	}

	httpServer := http.NewServer(
		log,
		cfg,
		serverEvents,
		db,
		version,
		authorizer,
		lifecycleService,
		accountService,
		contentService,
		schedulingService,
	)
	if valkeyService != nil {
		httpServer.AddReadinessCheck("restore_queue", valkeyService.Ping)
	}

	errorChannel := make(chan error, 1)
	go func() {
		errorChannel <- httpServer.Open()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Info().Msgf("received signal %v, shutting down", sig)
		if sig == syscall.SIGHUP {
			exitCode = 1
		}
	case err := <-errorChannel:
		if err != nil {
			log.Error().Err(err).Msg("http server stopped")
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	srv.Shutdown(ctx, httpServer)
	cancel()

	serverEvents.Close()

	if valkeyService != nil {
		valkeyService.Close()
		log.Info().Msg("Valkey service shut down")
	}

	if err := db.Close(); err != nil {
		log.Error().Stack().Err(err).Msg("could not close db connection")
		exitCode = 1
	}

	os.Exit(exitCode)
}
