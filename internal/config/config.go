package config

import (
	"bytes"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var configTemplate = `# config.toml

[server]
  # Hostname or IP address for the server to listen on.
  # Default: "{{ .host }}" (e.g., "127.0.0.1" for local access, "0.0.0.0" for all interfaces, especially in Docker)
  host = "{{ .host }}"

  # Port for the server to listen on.
  # Default: 8383
  port = 8383

  # Base URL for serving the API under a subdirectory (e.g., /hiatus/).
  # Optional.
  # Default: ""
  #base_url = ""

[database]
  # Database type to use.
  # Supported: "sqlite", "postgres"
  # Default: "sqlite"
  type = "sqlite"

  # These settings are only used if database.type is set to "postgres".
  [database.postgres]
    host = "localhost"
    port = 5432
    database = "hiatus"
    username = "postgres"
    password = "postgres"

    # Options: "disable", "allow", "prefer", "require", "verify-ca", "verify-full"
    # Default: "disable"
    ssl_mode = "disable"

[logging]
  # Log file path.
  # If empty or not set, logs will be written to standard output (stdout).
  # Default: ""
  path = "log/"

  # Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
  # Default: "DEBUG"
  level = "DEBUG"

  # Maximum size of a log file in megabytes (MB) before it is rotated.
  # Default: 50
  max_file_size = 50

  # Maximum number of old log files to keep.
  # Default: 3
  max_backup_count = 3

[valkey]
  # Only used when restore.queue is "valkey".
  # Default: "localhost:6379"
  address = "localhost:6379"
  password = ""
  db = 0
  # Every key is stored below this prefix.
  # Default: "hiatus"
  key_prefix = "hiatus"

[lifecycle]
  # Days a deactivated account or deleted post/comment can still be recovered.
  # The same window decides when content of a deactivated account is cascaded
  # and when soft deleted content is purged for good.
  # Default: 90
  recovery_window_days = 90

  # Cron schedules (minute hour dom month dow) in server time.
  # The cascade should run before the purge.
  # Default: "0 2 * * *" and "30 2 * * *"
  cascade_schedule = "0 2 * * *"
  purge_schedule = "30 2 * * *"

[restore]
  # Queue backing the background content restore after account reactivation.
  # Options: "memory", "valkey"
  # Default: "memory"
  queue = "memory"

  # Number of restore workers.
  # Default: 2
  workers = 2

  # Rows restored per page.
  # Default: 500
  batch_size = 500

  # Capacity of the in-memory queue.
  # Default: 1024
  queue_size = 1024

  # Exponential backoff of a failing restore task.
  # Default: 500 and 300
  retry_initial_ms = 500
  retry_max_elapsed_seconds = 300
`

func writeConfig(configPath string, configFile string) error {
	cfgPath := filepath.Join(configPath, configFile)

	// check if configPath exists, if not create it
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		err := os.MkdirAll(configPath, os.ModePerm)
		if err != nil {
			log.Println(err)
			return err
		}
	}

	// check if config exists, if not create it
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		host := "127.0.0.1"

		if _, dockerErr := os.Stat("/.dockerenv"); dockerErr == nil {
			host = "0.0.0.0"
		} else if b, cgroupErr := os.ReadFile("/proc/1/cgroup"); cgroupErr == nil {
			if strings.Contains(string(b), "/docker") || strings.Contains(string(b), "/lxc") {
				host = "0.0.0.0"
			}
		}

		f, createErr := os.Create(cfgPath)
		if createErr != nil {
			log.Printf("error creating file: %q", createErr)
			return createErr
		}
		defer func(f *os.File) {
			errClose := f.Close()
			if errClose != nil {
				log.Printf("error closing file: %q", errClose)
			}
		}(f)

		tmpl, tmplErr := template.New("config").Parse(configTemplate)
		if tmplErr != nil {
			return errors.Wrap(tmplErr, "could not create config template")
		}

		tmplVars := map[string]string{
			"host": host,
		}

		var buffer bytes.Buffer
		if execErr := tmpl.Execute(&buffer, &tmplVars); execErr != nil {
			return errors.Wrap(execErr, "could not write config template output")
		}

		if _, writeErr := f.WriteString(buffer.String()); writeErr != nil {
			log.Printf("error writing contents to file: %v %q", configPath, writeErr)
			return writeErr
		}

		return f.Sync()
	}

	return nil
}

type Config interface {
	DynamicReload(log logger.Logger)
}

type AppConfig struct {
	Config *domain.Config
	m      sync.Mutex
}

func New(configPath string, version string) *AppConfig {
	c := &AppConfig{}
	c.defaults()
	c.Config.Version = version
	c.Config.ConfigPath = configPath

	c.load(configPath)
	c.sanitize()

	return c
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Version:    "dev",
		ConfigPath: "",
		Server: domain.ServerConfig{
			Host:    "127.0.0.1",
			Port:    8383,
			BaseURL: "",
		},
		Database: domain.DatabaseConfig{
			Type: "sqlite",
			Postgres: domain.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "hiatus",
				User:     "postgres",
				Pass:     "postgres",
				SslMode:  "disable",
			},
		},
		Logging: domain.LoggingConfig{
			Path:           "",
			Level:          "DEBUG",
			MaxFileSize:    50,
			MaxBackupCount: 3,
		},
		Valkey: domain.ValkeyConfig{
			Address:   "localhost:6379",
			DB:        0,
			KeyPrefix: "hiatus",
		},
		Lifecycle: domain.LifecycleConfig{
			RecoveryWindowDays: 90,
			CascadeSchedule:    "0 2 * * *",
			PurgeSchedule:      "30 2 * * *",
		},
		Restore: domain.RestoreConfig{
			Queue:                  domain.RestoreQueueMemory,
			Workers:                2,
			BatchSize:              500,
			QueueSize:              1024,
			RetryInitialMs:         500,
			RetryMaxElapsedSeconds: 300,
		},
	}
}

func (c *AppConfig) load(configPath string) {
	viper.SetConfigType("toml")
	configPath = path.Clean(configPath)

	if configPath != "" {
		if err := writeConfig(configPath, "config.toml"); err != nil {
			log.Printf("writeConfig error during load: %q", err)
		}
		viper.SetConfigFile(path.Join(configPath, "config.toml"))
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/hiatus")
		viper.AddConfigPath("$HOME/.hiatus")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Config file not found, using defaults: %s", viper.ConfigFileUsed())
		} else {
			log.Printf("Config read error: %q. Using defaults.", err)
		}
	}

	if err := viper.Unmarshal(&c.Config); err != nil {
		log.Fatalf("Could not unmarshal config file into struct: %v. Config file used: %s", err, viper.ConfigFileUsed())
	}
}

// sanitize replaces values the lifecycle cannot run with by their defaults.
func (c *AppConfig) sanitize() {
	l := &c.Config.Lifecycle
	if l.RecoveryWindowDays <= 0 {
		log.Printf("lifecycle.recovery_window_days must be positive, got %d. Using 90.", l.RecoveryWindowDays)
		l.RecoveryWindowDays = 90
	}

	r := &c.Config.Restore
	switch r.Queue {
	case domain.RestoreQueueMemory, domain.RestoreQueueValkey:
	default:
		log.Printf("unknown restore.queue %q. Using %q.", r.Queue, domain.RestoreQueueMemory)
		r.Queue = domain.RestoreQueueMemory
	}
	if r.Workers <= 0 {
		r.Workers = 1
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 500
	}
	if r.QueueSize <= 0 {
		r.QueueSize = 1024
	}
	if r.RetryInitialMs <= 0 {
		r.RetryInitialMs = 500
	}
	if r.RetryMaxElapsedSeconds <= 0 {
		r.RetryMaxElapsedSeconds = 300
	}
}

func (c *AppConfig) DynamicReload(log logger.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		log.Info().Msgf("Config file changed: %s. Reloading configuration.", e.Name)

		if err := viper.ReadInConfig(); err != nil {
			log.Error().Err(err).Msg("Error reading config file during dynamic reload")
			return
		}

		var newConfig domain.Config
		newConfig.Version = c.Config.Version
		newConfig.ConfigPath = c.Config.ConfigPath

		if err := viper.Unmarshal(&newConfig); err != nil {
			log.Error().Err(err).Msg("Error unmarshalling config during dynamic reload")
			return
		}

		// Only the log level is applied live. Window and schedules are read once
		// at startup by the lifecycle service and the scheduler.
		if newConfig.Lifecycle != c.Config.Lifecycle || newConfig.Restore != c.Config.Restore {
			log.Warn().Msg("lifecycle and restore settings changed, restart to apply")
		}
		newConfig.Lifecycle = c.Config.Lifecycle
		newConfig.Restore = c.Config.Restore

		c.Config = &newConfig

		log.SetLogLevel(c.Config.Logging.Level)

		log.Debug().Msg("Configuration reloaded successfully!")
	})
	viper.WatchConfig()
}
