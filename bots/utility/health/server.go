// Package health serves liveness and readiness endpoints for orchestrators.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/m3rciful/utilitybot/core/logger"
)

const component = "http"

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Options configures the server.
type Options struct {
	Listen  string
	Version string
	// Checks run on /readyz; every one must pass.
	Checks map[string]Checker
	// Counters, when set, are reported on /healthz.
	Counters func() map[string]uint64
	// CheckTimeout bounds each readiness check.
	CheckTimeout time.Duration
}

// Server is the ops HTTP listener.
type Server struct {
	opts    Options
	router  *mux.Router
	started time.Time
}

// New builds the router.
func New(opts Options) *Server {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	s := &Server{opts: opts, router: mux.NewRouter(), started: time.Now()}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Name implements bootstrap.Service.
func (s *Server) Name() string { return "http" }

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	logger.Info(ctx, component, "listen", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, component, "shutdown", slog.String("status", "fail"), slog.String("err", err.Error()))
		return err
	}
	<-errCh
	return nil
}

type healthBody struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Uptime   string            `json:"uptime"`
	Counters map[string]uint64 `json:"counters,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := healthBody{
		Status:  "ok",
		Version: s.opts.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Counters != nil {
		body.Counters = s.opts.Counters()
	}
	writeJSON(w, http.StatusOK, body)
}

type readyBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := readyBody{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.CheckTimeout)
		err := s.opts.Checks[name](ctx)
		cancel()
		if err != nil {
			body.Checks[name] = logger.SanitizeLimit(err.Error(), 128)
			body.Status = "fail"
			code = http.StatusServiceUnavailable
			logger.Warn(r.Context(), component, "readyz",
				slog.String("status", "fail"),
				slog.String("check", name),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			continue
		}
		body.Checks[name] = "ok"
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
