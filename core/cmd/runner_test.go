package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m3rciful/utilitybot/core/bootstrap"
	coreconfig "github.com/m3rciful/utilitybot/core/config"
	coretelegram "github.com/m3rciful/utilitybot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	services []bootstrap.Service
	closed   bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}
func (a *fakeApp) Services() []bootstrap.Service { return a.services }
func (a *fakeApp) Close() error                  { a.closed = true; return nil }

func baseOptions(app *fakeApp, gotPath *string) Options {
	return Options{
		LoadConfig: func(path string) (ConfigCarrier, error) {
			*gotPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	require.Empty(t, Options{}.ResolveConfigPath())
	require.Equal(t, "default.yaml", Options{DefaultConfigPath: "default.yaml"}.ResolveConfigPath())

	t.Setenv("CONFIG_PATH", "env.yaml")
	require.Equal(t, "env.yaml", Options{DefaultConfigPath: "default.yaml"}.ResolveConfigPath())
	require.Equal(t, "flag.yaml", Options{ConfigPath: "flag.yaml"}.ResolveConfigPath())
}

func TestRunHooksAndServices(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreAnyFunction("os/signal.loop"))

	svcStopped := make(chan struct{})
	app := &fakeApp{services: []bootstrap.Service{
		bootstrap.ServiceFunc{ID: "sweeper", Fn: func(ctx context.Context) error {
			<-ctx.Done()
			close(svcStopped)
			return nil
		}},
	}}
	var path string
	opts := baseOptions(app, &path)
	opts.ConfigPath = "bot.yaml"
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		require.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
		return ro.OnStop(ctx, coretelegram.Runtime{})
	}

	require.NoError(t, Run(opts))
	require.Equal(t, "bot.yaml", path)
	require.True(t, app.closed)
	<-svcStopped
}

func TestRunServiceFailureStopsBot(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreAnyFunction("os/signal.loop"))

	boom := errors.New("listen: address in use")
	app := &fakeApp{services: []bootstrap.Service{
		bootstrap.ServiceFunc{ID: "http", Fn: func(context.Context) error { return boom }},
	}}
	var path string
	opts := baseOptions(app, &path)
	opts.RunTelegram = func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return nil
	}

	require.ErrorIs(t, Run(opts), boom)
}

func TestRunRequiresLoaders(t *testing.T) {
	require.Error(t, Run(Options{}))

	loadErr := errors.New("bad yaml")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, loadErr },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return &fakeApp{}, nil },
	})
	require.ErrorIs(t, err, loadErr)
}
