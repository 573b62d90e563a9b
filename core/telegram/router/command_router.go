package router

import (
	"log/slog"

	"payoutbot/core/logger"
	tg "payoutbot/core/telegram"
	"payoutbot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Auth middleware.AuthOptions
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Commands marked RequiresAuth additionally pass the login gate.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		if def.RequiresAuth {
			h = middleware.AuthGateMiddleware(opts.Auth)(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
