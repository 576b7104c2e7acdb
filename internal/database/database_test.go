package database

import (
	"path"
	"testing"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(dbType string, configPath string) *domain.Config {
	return &domain.Config{
		ConfigPath: configPath,
		Database: domain.DatabaseConfig{
			Type: dbType,
			Postgres: domain.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Pass:     "pass",
				Database: "testdb",
				SslMode:  "disable",
			},
		},
		Logging: domain.LoggingConfig{Level: "DEBUG"},
	}
}

func TestNewDB_SQLite(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := NewDB(newTestConfig("sqlite", tmpDir), logger.Mock())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Driver)
	assert.Equal(t, path.Join(tmpDir, "hiatus.db")+"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", db.DSN)
}

func TestNewDB_Postgres(t *testing.T) {
	cfg := newTestConfig("postgres", "")
	cfg.Database.Postgres = domain.PostgresConfig{
		Host:     "pg_host",
		Port:     5433,
		User:     "pg_user",
		Pass:     "pg_pass",
		Database: "pg_db",
		SslMode:  "require",
	}

	db, err := NewDB(cfg, logger.Mock())
	require.NoError(t, err)
	assert.Equal(t, "postgres", db.Driver)
	assert.Equal(t, "host=pg_host port=5433 user=pg_user password=pg_pass dbname=pg_db sslmode=require", db.DSN)
}

func TestNewDB_Postgres_IncompleteConfig(t *testing.T) {
	cfg := newTestConfig("postgres", "")
	cfg.Database.Postgres.Host = ""

	_, err := NewDB(cfg, logger.Mock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres configuration is incomplete")
}

func TestNewDB_UnsupportedType(t *testing.T) {
	_, err := NewDB(newTestConfig("mysql", ""), logger.Mock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type: mysql")
}

// setupTestDBInstance opens a migrated sqlite database in a temp dir.
func setupTestDBInstance(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(newTestConfig("sqlite", t.TempDir()), logger.Mock())
	require.NoError(t, err)
	require.NoError(t, db.Open())

	t.Cleanup(func() {
		assert.NoError(t, db.Close(), "Error closing test DB")
	})

	return db
}

func TestDB_Open_Close_Ping_Get(t *testing.T) {
	db := setupTestDBInstance(t)

	require.NotNil(t, db.handler)
	assert.NoError(t, db.Ping())
	assert.NotNil(t, db.Get())

	dbNoHandler := &DB{log: logger.Mock().With().Str("module", "database").Logger()}
	err := dbNoHandler.Ping()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database handler is not initialized")
}

func TestDB_Open_Migrations(t *testing.T) {
	db := setupTestDBInstance(t)

	for _, table := range []string{"accounts", "posts", "comments"} {
		assert.True(t, db.handler.Migrator().HasTable(table), "Table %s should exist after migration", table)
	}
	assert.True(t, db.handler.Migrator().HasColumn(&domain.Account{}, "deactivated_at"))
	assert.True(t, db.handler.Migrator().HasColumn(&domain.Post{}, "deleted_at"))
	assert.True(t, db.handler.Migrator().HasColumn(&domain.Comment{}, "deleted_at"))
}

func TestDB_Open_NoDSN(t *testing.T) {
	db := &DB{log: logger.Mock().With().Logger(), Driver: "sqlite"}
	err := db.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database DSN is required")
}

func TestDB_Open_UnsupportedDriverInOpen(t *testing.T) {
	db := &DB{log: logger.Mock().With().Logger(), Driver: "oracle", DSN: "some_dsn"}
	err := db.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver: oracle")
}
