package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m3rciful/utilitybot/bots/utility/config"
	"github.com/m3rciful/utilitybot/bots/utility/migrations"
	"github.com/m3rciful/utilitybot/core/bootstrap"
	coreconfig "github.com/m3rciful/utilitybot/core/config"
	"github.com/m3rciful/utilitybot/core/database"
	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/sender"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.AdminID = 1
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	cfg.Database.Path = ":memory:"
	return &cfg
}

func memoryBootstrap(opts bootstrap.Options) (*bootstrap.Result, error) {
	return bootstrap.Run(bootstrap.Options{
		Config:     opts.Config,
		Database:   opts.Database,
		Migrations: migrations.FS,
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
}

func TestNewWiresEverything(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Listen = "127.0.0.1:0"

	a, err := New(cfg, Deps{Bootstrap: memoryBootstrap})
	require.NoError(t, err)
	defer a.Close()

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.Same(t, &cfg.Config, opts.Config)
	require.NotEmpty(t, opts.Routes)
	require.NotEmpty(t, opts.Middlewares)
	require.Equal(t, 4, opts.DispatcherOptions.Workers)

	_, cmd, ok := opts.Registry.LookupCommand("/botstats")
	require.True(t, ok)
	require.True(t, cmd.AdminOnly)

	names := []string{}
	for _, s := range a.Services() {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{"state.sweeper", "http"}, names)
}

func TestNewWithoutOptionalServices(t *testing.T) {
	a, err := New(testConfig(), Deps{Bootstrap: memoryBootstrap})
	require.NoError(t, err)
	defer a.Close()
	require.Len(t, a.Services(), 1)
	require.Nil(t, a.cache)
}

func TestNewFallsBackWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	a, err := New(cfg, Deps{Bootstrap: memoryBootstrap})
	require.NoError(t, err)
	defer a.Close()
	require.Nil(t, a.cache)
}

func TestNewPropagatesBootstrapError(t *testing.T) {
	boom := errors.New("db connect: timeout")
	_, err := New(testConfig(), Deps{Bootstrap: func(bootstrap.Options) (*bootstrap.Result, error) {
		return nil, boom
	}})
	require.ErrorIs(t, err, boom)
}

func TestNewUsesProvidedDB(t *testing.T) {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, database.DriverSQLite, migrations.FS))

	a, err := New(testConfig(), Deps{DB: db})
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestBootstrapRejectsForeignConfig(t *testing.T) {
	_, err := Bootstrap(fakeCarrier{})
	require.Error(t, err)
}

type fakeCarrier struct{}

func (fakeCarrier) CoreConfig() *coreconfig.Config { return &coreconfig.Config{} }

func TestCountersAndLifecycleHooks(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, err := New(testConfig(), Deps{Bootstrap: memoryBootstrap})
	require.NoError(t, err)
	defer a.Close()

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"pending_tasks": 0}, a.counters())

	d := sender.NewDispatcher(sender.Options{Workers: 1})
	require.NoError(t, opts.OnStart(context.Background(), tg.Runtime{Dispatcher: d}))
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }))
	d.Close()
	require.Equal(t, uint64(1), a.counters()["sent"])

	require.NoError(t, opts.OnStop(context.Background(), tg.Runtime{}))
	require.NotContains(t, a.counters(), "sent")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, bootstrap.RunServices(ctx, a.Services()...))
}
