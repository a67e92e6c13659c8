// Package helpers bridges telebot contexts with the logging context and the async sender.
package helpers

import (
	"context"

	"github.com/m3rciful/utilitybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey  = "logger_ctx"
	ridKey      = "rid"
	traceKey    = "trace_id"
	answeredKey = "cb_answered"
)

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context previously stored by middleware.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// SetTraceID stores the trace id generated for the update.
func SetTraceID(c tele.Context, traceID string) {
	c.Set(traceKey, traceID)
}

// BuildContext constructs a context.Context from tele.Context,
// enriching it with rid, trace id and update/user/chat metadata.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	rid, _ := c.Get(ridKey).(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
		c.Set(ridKey, rid)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	if traceID, _ := c.Get(traceKey).(string); traceID != "" {
		ctx = logger.WithTraceID(ctx, traceID)
	}
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
