package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/utilitybot/core/config"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "dev")
}

func TestRunWithoutTokenFails(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	os.Unsetenv("BOT_TOKEN")
	t.Setenv("CONFIG_PATH", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, cmd.Execute())

	cfgPath := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  driver: sqlite\n"), 0o600))
	cmd = newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath})
	require.ErrorIs(t, cmd.Execute(), coreconfig.ErrMissingToken)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bot.yaml")
	dbPath := filepath.Join(dir, "bot.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  driver: sqlite\n  path: "+dbPath+"\nlogging:\n  level: error\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate", "-c", cfgPath})
	require.NoError(t, cmd.Execute())
	_, err := os.Stat(dbPath)
	require.NoError(t, err)
}
