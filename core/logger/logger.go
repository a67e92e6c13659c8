package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/utilitybot/core/buildinfo"
	coreconfig "github.com/m3rciful/utilitybot/core/config"
)

const writerBuffer = 64 * 1024

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	logWriter *asyncWriter
	logFiles  []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. It discards everything until InitLogger runs,
	// so packages can log unconditionally (tests included).
	L = slog.New(slog.DiscardHandler)

	// DB logs database connectivity events.
	DB *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger

	// scoped caches one child logger per component name; reset whenever L changes.
	scoped sync.Map
)

func init() {
	rebind()
}

// settings is the logging section of the config after defaults are applied.
type settings struct {
	level    slog.Level
	format   logFormat
	keyOrder []string
	profile  string
	num, den int
	dir      string
	file     string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		level:    slog.LevelInfo,
		format:   formatJSON,
		keyOrder: slices.Clone(defaultKeyOrder),
		profile:  "prod",
		num:      1,
		den:      50,
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	if s.profile == "debug" || s.profile == "dev" {
		s.format = formatKV
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
		s.format = formatJSON
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.keyOrder = order
		}
	}

	if strings.TrimSpace(lc.DebugSample) != "" {
		s.num, s.den = parseRatio(lc.DebugSample)
		if s.num <= 0 || s.den <= 0 {
			// "0" or garbage disables sampling
			s.num, s.den = 0, 0
		}
	}

	s.dir = strings.TrimSpace(lc.Dir)
	s.file = strings.TrimSpace(lc.File)
	return s
}

// InitLogger configures the global structured logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.num, s.den)
		traceOverride = envOn("TRACE") || envOn("LOG_TRACE")

		outputs, err := s.openOutputs()
		if err != nil {
			initErr = err
			return
		}
		logWriter = newAsyncWriter(outputs, writerBuffer)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)
		rebind()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return initErr
}

func rebind() {
	scoped.Clear()
	DB = Component("db")
	MIG = Component("db.migrate")
	TG = Component("tg")
	TWire = Component("tg.wire")
}

// openOutputs always writes to stdout and adds an append-only file when both
// dir and file are configured.
func (s settings) openOutputs() ([]io.Writer, error) {
	outputs := []io.Writer{os.Stdout}
	if s.dir == "" || s.file == "" {
		return outputs, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, s.file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	logFiles = append(logFiles, f)
	return append(outputs, f), nil
}

// Shutdown drains the async writer and closes log files. Later calls are no-ops.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	for _, f := range logFiles {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes one record with the event attribute set.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ensure(ctx), level, "", attrs...)
}

// Component returns the logger for a component, creating it on first use.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	if l, ok := scoped.Load(name); ok {
		return l.(*slog.Logger)
	}
	l, _ := scoped.LoadOrStore(name, L.With("component", name))
	return l.(*slog.Logger)
}

// Event logs under the named component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func envOn(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
