package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "payoutbot/core/telegram"
	"payoutbot/core/telegram/callbacks"
	"payoutbot/core/telegram/middleware"
)

// CallbackOptions customises fallback and gating behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
	Auth     middleware.AuthOptions
}

// CallbackRoute returns a handler that routes callbacks through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.Key(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		_ = c.Respond()

		cbHandler, requiresAuth, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		h := cbHandler
		if requiresAuth {
			h = middleware.AuthGateMiddleware(opts.Auth)(h)
		}
		return handleWithSummary(c, name, start, func() error {
			return h(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
