package router

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/m3rciful/utilitybot/core/logger"
	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes wraps every registered command with recover, update logging,
// a handler summary and, for admin commands, the access check. Routes come out
// sorted by command name.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	admin := 0
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		def := cmds[name]
		h := summarized(normalizeHandlerName(name), def.Handler)
		if def.AdminOnly {
			h = adminOnly(h)
			admin++
		}
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands.routed"),
		slog.Int("commands", len(routes)),
		slog.Int("admin", admin),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
