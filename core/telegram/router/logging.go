// Package router turns a Registry and plain handlers into telebot routes with
// per-handler summary logging.
package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/utilitybot/core/logger"
	tghelpers "github.com/m3rciful/utilitybot/core/telegram/helpers"
	"github.com/m3rciful/utilitybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// span is one handler invocation; it ends with a single handler.handled line.
type span struct {
	c      tele.Context
	name   string
	start  time.Time
	extras []slog.Attr
}

func begin(c tele.Context, name string, extras ...slog.Attr) *span {
	tghelpers.WithHandler(c, name)
	return &span{c: c, name: name, start: time.Now(), extras: extras}
}

// run calls h (nil is a no-op) and logs the result.
func (s *span) run(h tele.HandlerFunc) error {
	var err error
	if h != nil {
		err = h(s.c)
	}
	st := logger.Status(err)
	s.end(st, st, err)
	return err
}

// skip logs an update that had nothing to handle it.
func (s *span) skip() { s.end("skip", "ok", nil) }

func (s *span) end(status, outcome string, err error) {
	msgs, kb := middleware.GetCounters(s.c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}, s.extras...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	ctx := tghelpers.WithHandler(s.c, s.name)
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

func summarized(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error { return begin(c, name).run(h) }
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// deriveErrorCode prefers an explicit Code() and otherwise uses the type name
// of the innermost wrapped error, so fmt wrappers do not all read "WRAPERROR".
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(err) {
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
