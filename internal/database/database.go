package database

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sqliteFile = "hiatus.db"

type DB struct {
	log     zerolog.Logger
	handler *gorm.DB
	ctx     context.Context
	cancel  func()

	Driver string
	DSN    string
}

func NewDB(cfg *domain.Config, log logger.Logger) (*DB, error) {
	db := &DB{
		log: log.With().Str("module", "database").Logger(),
	}
	db.ctx, db.cancel = context.WithCancel(context.Background())

	switch cfg.Database.Type {
	case "sqlite":
		db.Driver = "sqlite"
		db.DSN = dataSourceName(cfg.ConfigPath, sqliteFile)
	case "postgres", "postgresql":
		pg := cfg.Database.Postgres
		if pg.Host == "" || pg.Port == 0 || pg.Database == "" {
			return nil, errors.New("postgres configuration is incomplete")
		}
		db.DSN = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pg.Host, pg.Port, pg.User, pg.Pass, pg.Database, pg.SslMode)
		db.Driver = "postgres"
	default:
		return nil, errors.New("unsupported database type: %v", cfg.Database.Type)
	}

	return db, nil
}

// dataSourceName returns the sqlite DSN for name inside configPath. Writers
// wait on a busy database instead of failing, and transactions take the write
// lock up front so a read-then-write never deadlocks.
func dataSourceName(configPath string, name string) string {
	if configPath != "" {
		name = path.Join(configPath, name)
	}
	return name + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

func (db *DB) gormLogLevel() gormlogger.LogLevel {
	switch db.log.GetLevel() {
	case zerolog.InfoLevel, zerolog.WarnLevel:
		return gormlogger.Warn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return gormlogger.Error
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

func (db *DB) Open() error {
	if db.DSN == "" {
		return errors.New("database DSN is required but not configured")
	}

	// gorm prints through a std logger, which writes into our zerolog logger
	newLogger := gormlogger.New(
		log.New(db.log, "", 0),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  db.gormLogLevel(),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormConfig := &gorm.Config{
		Logger: newLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}

	var dialector gorm.Dialector
	switch db.Driver {
	case "sqlite":
		dialector = sqlite.Open(db.DSN)
		db.log.Info().Str("dsn", db.DSN).Msg("Using SQLite driver")
	case "postgres":
		dialector = postgres.Open(db.DSN)
		db.log.Info().Msg("Using PostgreSQL driver")
	default:
		return errors.New("unsupported database driver: %s", db.Driver)
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		db.log.Error().Err(err).Str("driver", db.Driver).Msg("Failed to connect database")
		return errors.Wrap(err, "failed to connect database")
	}
	db.handler = gormDB
	db.log.Info().Msg("Database connection established successfully.")

	return db.migrate()
}

func (db *DB) migrate() error {
	db.log.Info().Msg("Running database auto-migrations...")
	err := db.handler.AutoMigrate(
		&domain.Account{},
		&domain.Post{},
		&domain.Comment{},
	)
	if err != nil {
		db.log.Error().Err(err).Msg("Failed to run database auto-migrations")
		return errors.Wrap(err, "failed to run database auto-migrations")
	}
	db.log.Info().Msg("Database auto-migrations completed.")

	return nil
}

func (db *DB) Close() error {
	db.cancel()

	if db.handler != nil {
		sqlDB, err := db.handler.DB()
		if err != nil {
			return errors.Wrap(err, "failed to get underlying *sql.DB")
		}
		if err := sqlDB.Close(); err != nil {
			return errors.Wrap(err, "failed to close database")
		}
	}

	db.log.Info().Msg("Database service closed.")
	return nil
}

func (db *DB) Ping() error {
	if db.handler == nil {
		return errors.New("database handler is not initialized")
	}
	sqlDB, err := db.handler.DB()
	if err != nil {
		db.log.Error().Err(err).Msg("Failed to get underlying *sql.DB for ping")
		return errors.Wrap(err, "failed to get underlying *sql.DB")
	}

	err = sqlDB.PingContext(db.ctx)
	if err != nil {
		db.log.Warn().Err(err).Msg("Database ping failed")
		return errors.Wrap(err, "database ping failed")
	}
	db.log.Debug().Msg("Database ping successful")
	return nil
}

// Get returns the underlying GORM DB instance.
func (db *DB) Get() *gorm.DB {
	return db.handler
}
