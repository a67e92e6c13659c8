// Package app assembles the utility bot from configuration: database, executors,
// state machine, Telegram routes and background services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/utilitybot/bots/utility/config"
	"github.com/m3rciful/utilitybot/bots/utility/dispatch"
	"github.com/m3rciful/utilitybot/bots/utility/handlers"
	"github.com/m3rciful/utilitybot/bots/utility/health"
	"github.com/m3rciful/utilitybot/bots/utility/migrations"
	"github.com/m3rciful/utilitybot/bots/utility/shortcache"
	"github.com/m3rciful/utilitybot/bots/utility/storage"
	"github.com/m3rciful/utilitybot/bots/utility/tasks"
	"github.com/m3rciful/utilitybot/core/bootstrap"
	"github.com/m3rciful/utilitybot/core/buildinfo"
	corecmd "github.com/m3rciful/utilitybot/core/cmd"
	"github.com/m3rciful/utilitybot/core/logger"
	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/router"
	tgsender "github.com/m3rciful/utilitybot/core/telegram/sender"
	"github.com/m3rciful/utilitybot/core/telegram/state"
)

// App is the running utility bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	cache    *shortcache.Cache
	states   *state.Store
	handlers *handlers.Handlers
	health   *health.Server

	sender atomic.Pointer[tgsender.Dispatcher]
}

// Deps overrides infrastructure built by New, mostly for tests.
type Deps struct {
	DB *sqlx.DB
	// Bootstrap replaces bootstrap.Run when DB is nil.
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
}

// Bootstrap implements the runner's bootstrap hook.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(cfg, Deps{})
}

// New wires the bot. The database is connected and migrated unless deps carries one.
func New(cfg *config.Config, deps Deps) (*App, error) {
	db := deps.DB
	if db == nil {
		run := deps.Bootstrap
		if run == nil {
			run = bootstrap.Run
		}
		res, err := run(bootstrap.Options{
			Config:     &cfg.Config,
			Database:   cfg.Database,
			Migrations: migrations.FS,
		})
		if err != nil {
			return nil, err
		}
		db = res.DB
	}

	a := &App{cfg: cfg, db: db}
	ctx := context.Background()

	var cache tasks.Cache
	if cfg.Redis.Addr != "" && cfg.Shortener.CacheTTL > 0 {
		c, err := shortcache.Connect(ctx, shortcache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Shortener.CacheTTL,
		})
		if err != nil {
			// the cache is an optimisation; run without it
			logger.Warn(ctx, "cache", "connect",
				slog.String("status", "fallback"),
				slog.String("err", err.Error()),
			)
		} else {
			a.cache = c
			cache = c
		}
	}

	shortener, err := tasks.NewShortener(tasks.ShortenerOptions{
		Endpoint: cfg.Shortener.Endpoint,
		Timeout:  cfg.Shortener.Timeout,
		Cache:    cache,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.states = state.NewStore(state.Options{TTL: cfg.State.TTL, SweepInterval: cfg.State.SweepInterval})
	gateway := storage.New(db)
	d, err := dispatch.New(dispatch.Deps{
		States:       a.states,
		QR:           tasks.NewQRGenerator(cfg.QR.Size),
		Shortener:    shortener,
		Store:        gateway,
		CaptionLimit: cfg.QR.CaptionLimit,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.handlers = handlers.New(d)

	if cfg.HTTP.Listen != "" {
		checks := map[string]health.Checker{"database": gateway.Ping}
		if a.cache != nil {
			checks["redis"] = a.cache.Ping
		}
		a.health = health.New(health.Options{
			Listen:   cfg.HTTP.Listen,
			Version:  buildinfo.String(),
			Checks:   checks,
			Counters: a.counters,
		})
	}
	return a, nil
}

// TelegramRunOptions builds routes and middleware for the core runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.handlers.AdminRejected(),
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.handlers.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		Text:            a.handlers.Text,
		UnknownDocument: a.handlers.UnknownDocument(),
	})...)

	return tg.RunOptions{
		Config:   &a.cfg.Config,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			Workers:    a.cfg.Sender.Workers,
			QueueSize:  a.cfg.Sender.QueueSize,
			MaxRetries: a.cfg.Sender.MaxRetries,
		},
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.handlers.RateLimited()),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.sender.Store(rt.Dispatcher)
			return nil
		},
		OnStop: func(_ context.Context, _ tg.Runtime) error {
			a.sender.Store(nil)
			return nil
		},
	}, nil
}

// Services returns the state sweeper and, when configured, the ops HTTP server.
func (a *App) Services() []bootstrap.Service {
	svcs := []bootstrap.Service{
		bootstrap.ServiceFunc{ID: "state.sweeper", Fn: a.states.Run},
	}
	if a.health != nil {
		svcs = append(svcs, a.health)
	}
	return svcs
}

// Close releases the cache and database.
func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *App) counters() map[string]uint64 {
	out := map[string]uint64{"pending_tasks": uint64(a.states.Len())}
	if d := a.sender.Load(); d != nil {
		out["sent"] = d.Sent()
		out["send_errors"] = d.ErrorCount()
		out["send_queued"] = uint64(d.Queued())
	}
	return out
}
