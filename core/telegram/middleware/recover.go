package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/utilitybot/core/logger"
	tghelpers "github.com/m3rciful/utilitybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic wraps a value recovered from a handler.
var ErrPanic = errors.New("handler panic")

const maxStack = 8 << 10

// RecoverMiddleware turns a handler panic into an ErrPanic error and logs the stack.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), maxStack)),
			)
		}()
		return next(c)
	}
}
