package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/utilitybot/core/logger"
)

// Service is a background component that lives as long as the bot, such as
// a cache sweeper or an ops HTTP listener. Run blocks until ctx is done.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceFunc adapts a bare function to the Service interface.
type ServiceFunc struct {
	ID string
	Fn func(ctx context.Context) error
}

// Name returns the service identifier used in logs.
func (s ServiceFunc) Name() string { return s.ID }

// Run executes the underlying function.
func (s ServiceFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// RunServices runs services concurrently until ctx is done or one of them
// fails; a failure cancels the others. Context cancellation is not an error.
func RunServices(ctx context.Context, services ...Service) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if svc == nil {
			continue
		}
		g.Go(func() error {
			logger.Debug(gctx, "app", "service.start", slog.String("service", svc.Name()))
			err := svc.Run(gctx)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logger.Info(gctx, "app", "service.stop",
				slog.String("service", svc.Name()),
				slog.String("status", logger.Status(err)),
			)
			return err
		})
	}
	return g.Wait()
}
