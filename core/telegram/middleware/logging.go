package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/utilitybot/core/logger"
	"github.com/m3rciful/utilitybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/utilitybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const dedupWindow = 10 * time.Second

// updateSeen remembers recently logged update ids so a middleware applied on
// several branches logs each update once.
type updateSeen struct {
	mu   sync.Mutex
	seen map[int]time.Time
}

var recent = &updateSeen{seen: make(map[int]time.Time)}

func (u *updateSeen) firstTime(updateID int, now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, ts := range u.seen {
		if now.Sub(ts) > dedupWindow {
			delete(u.seen, id)
		}
	}
	if _, ok := u.seen[updateID]; ok {
		return false
	}
	u.seen[updateID] = now
	return true
}

// LoggerMiddleware assigns rid and trace id to the update, stores the logging
// context for downstream helpers and logs a sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); !ok {
			tghelpers.SetTraceID(c, uuid.NewString())
		}
		ctx := tghelpers.BuildContext(c)

		upd := c.Update()
		if logger.ShouldSampleDebug() && recent.firstTime(upd.ID, time.Now()) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback)
				if upd.Callback.Unique != "" {
					key = upd.Callback.Unique
				}
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				attrs = append(attrs, slog.Int("input_len", len([]rune(c.Text()))))
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
