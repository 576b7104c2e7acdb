package domain

// ServerConfig holds server-related settings
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// PostgresConfig holds PostgreSQL-specific settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"username"`
	Pass     string `mapstructure:"password"`
	SslMode  string `mapstructure:"ssl_mode"`
}

// DatabaseConfig holds general database settings and nested specific configs
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Path           string `mapstructure:"path"`
	Level          string `mapstructure:"level"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	MaxBackupCount int    `mapstructure:"max_backup_count"`
}

// ValkeyConfig holds Valkey-specific settings
type ValkeyConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LifecycleConfig holds the recovery window and the sweep schedules.
type LifecycleConfig struct {
	RecoveryWindowDays int    `mapstructure:"recovery_window_days" json:"recovery_window_days"`
	CascadeSchedule    string `mapstructure:"cascade_schedule" json:"cascade_schedule"`
	PurgeSchedule      string `mapstructure:"purge_schedule" json:"purge_schedule"`
}

const (
	RestoreQueueMemory = "memory"
	RestoreQueueValkey = "valkey"
)

// RestoreConfig holds settings for the background restore runner
type RestoreConfig struct {
	Queue                  string `mapstructure:"queue" json:"queue"`
	Workers                int    `mapstructure:"workers" json:"workers"`
	BatchSize              int    `mapstructure:"batch_size" json:"batch_size"`
	QueueSize              int    `mapstructure:"queue_size" json:"queue_size"`
	RetryInitialMs         int    `mapstructure:"retry_initial_ms" json:"retry_initial_ms"`
	RetryMaxElapsedSeconds int    `mapstructure:"retry_max_elapsed_seconds" json:"retry_max_elapsed_seconds"`
}

// Config holds the application's configuration, mapped from config.toml
type Config struct {
	Version    string // not from config file
	ConfigPath string // internal use

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Restore   RestoreConfig   `mapstructure:"restore"`
}
