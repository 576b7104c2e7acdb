package http

import (
	"net/http"

	"github.com/flurbudurbur/Hiatus/internal/config"
	"github.com/flurbudurbur/Hiatus/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type configJson struct {
	Host      string                 `json:"host"`
	Port      int                    `json:"port"`
	LogLevel  string                 `json:"log_level"`
	Database  string                 `json:"database"`
	Lifecycle domain.LifecycleConfig `json:"lifecycle"`
	Restore   domain.RestoreConfig   `json:"restore"`
	Version   string                 `json:"version"`
}

type configHandler struct {
	encoder encoder

	cfg     *config.AppConfig
	version string
}

func newConfigHandler(encoder encoder, cfg *config.AppConfig, version string) *configHandler {
	return &configHandler{
		encoder: encoder,
		cfg:     cfg,
		version: version,
	}
}

func (h configHandler) Routes(r chi.Router) {
	r.Get("/", h.getConfig)
}

func (h configHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	conf := configJson{
		Host:      h.cfg.Config.Server.Host,
		Port:      h.cfg.Config.Server.Port,
		LogLevel:  h.cfg.Config.Logging.Level,
		Database:  h.cfg.Config.Database.Type,
		Lifecycle: h.cfg.Config.Lifecycle,
		Restore:   h.cfg.Config.Restore,
		Version:   h.version,
	}

	render.JSON(w, r, conf)
}
