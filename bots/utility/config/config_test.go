package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/utilitybot/core/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BOT_TOKEN", "TELEGRAM_BOT_TOKEN", "CONFIG_PATH",
		"DB_DRIVER", "DATABASE_DB_DRIVER", "DB_PATH", "DATABASE_DB_PATH",
		"STATE_TTL", "STATE_STATE_TTL", "REDIS_ADDR", "REDIS_REDIS_ADDR",
		"SHORTENER_TIMEOUT", "SHORTENER_SHORTENER_TIMEOUT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "utility_bot.db", cfg.Database.Path)
	require.Equal(t, DefaultShortenerEndpoint, cfg.Shortener.Endpoint)
	require.Equal(t, 10*time.Second, cfg.Shortener.Timeout)
	require.Equal(t, 400, cfg.QR.Size)
	require.Equal(t, 50, cfg.QR.CaptionLimit)
	require.Equal(t, 10*time.Minute, cfg.State.TTL)
	require.Empty(t, cfg.Redis.Addr)
	require.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadMissingToken(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.ErrorIs(t, err, coreconfig.ErrMissingToken)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: file-token
database:
  driver: sqlite
  path: /data/bot.db
state:
  ttl: 0s
shortener:
  timeout: 3s
redis:
  addr: localhost:6379
`), 0o600))
	t.Setenv("SHORTENER_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file-token", cfg.Telegram.Token)
	require.Equal(t, "/data/bot.db", cfg.Database.Path)
	require.Zero(t, cfg.State.TTL, "explicit zero disables expiry")
	require.Equal(t, time.Minute, cfg.State.SweepInterval, "absent keys keep defaults")
	require.Equal(t, 5*time.Second, cfg.Shortener.Timeout, "env wins over file")
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 50, cfg.QR.CaptionLimit)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Shortener.Endpoint = "tinyurl.com/api"
	require.Error(t, cfg.Normalize())

	cfg = Defaults()
	cfg.QR.Size = 10
	require.Error(t, cfg.Normalize())

	cfg = Defaults()
	cfg.Database.Driver = "mysql"
	require.Error(t, cfg.Normalize())

	cfg = Defaults()
	require.NoError(t, cfg.Normalize())
}

func TestLoadDatabaseSkipsToken(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.ErrorIs(t, err, coreconfig.ErrMissingToken)

	cfg, err := LoadDatabase("")
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
}
