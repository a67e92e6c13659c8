package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSQLiteDefaults(t *testing.T) {
	cfg := Config{MaxConnections: 8}
	require.NoError(t, cfg.Normalize())
	require.Equal(t, DriverSQLite, cfg.Driver)
	require.Equal(t, "utility_bot.db", cfg.Path)
	require.Equal(t, 1, cfg.MaxConnections)
	require.Equal(t, "file:utility_bot.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DSN())

	mem := Config{Driver: "sqlite3", Path: ":memory:"}
	require.NoError(t, mem.Normalize())
	require.Equal(t, "file::memory:?_pragma=foreign_keys(1)", mem.DSN())
}

func TestNormalizePostgres(t *testing.T) {
	cfg := Config{Driver: "Postgres", Host: "db", User: "bot", Password: "p@ss", Name: "utility"}
	require.NoError(t, cfg.Normalize())
	require.Equal(t, "5432", cfg.Port)
	require.Equal(t, "disable", cfg.SSLMode)
	require.Equal(t, 10, cfg.MaxConnections)
	require.Equal(t, "postgres://bot:p%40ss@db:5432/utility?sslmode=disable", cfg.DSN())
	require.Equal(t, "db:5432/utility", cfg.Target())

	require.Error(t, (&Config{Driver: "postgres"}).Normalize())
	require.Error(t, (&Config{Driver: "oracle"}).Normalize())
}
