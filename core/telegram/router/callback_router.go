package router

import (
	"log/slog"

	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/utilitybot/core/telegram/helpers"
	"github.com/m3rciful/utilitybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes every inline button press through the registry.
// The callback query is answered after the handler unless it already answered with a toast.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		run, ok := reg.GetCallback(key)
		if !ok || run == nil {
			run = opts.NotFound
			if run == nil {
				run = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}

		err := begin(c, name, extras...).run(run)
		if !tghelpers.CallbackAnswered(c) {
			_ = c.Respond()
		}
		return err
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
