package router

import (
	"log/slog"
	"strings"

	"github.com/m3rciful/utilitybot/core/logger"
	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls routing of plain text and documents.
type TextOptions struct {
	// Text receives every non-command text message.
	Text            tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document updates.
// Text starting with "/" is treated as a command: registered aliases run their
// command, anything else is ignored and never reaches opts.Text.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()
		if !strings.HasPrefix(text, "/") {
			if opts.Text == nil {
				begin(c, "unknown_text").skip()
				return nil
			}
			return begin(c, "text").run(opts.Text)
		}

		// admin commands only run through their own route so the access check applies
		name, _, _ := strings.Cut(strings.Fields(text)[0], "@")
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(name); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return begin(c, normalizeHandlerName(key)).run(cmd.Handler)
			}
		}
		begin(c, "unknown_command", slog.String("cmd", logger.SanitizeLimit(name, 32))).skip()
		return nil
	}

	docHandler := func(c tele.Context) error {
		sp := begin(c, "unexpected_document")
		if opts.UnknownDocument == nil {
			sp.skip()
			return nil
		}
		return sp.run(opts.UnknownDocument)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
