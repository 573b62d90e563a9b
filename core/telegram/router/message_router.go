package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "payoutbot/core/telegram"
	"payoutbot/core/telegram/middleware"
)

// FSM is the minimal interface the text router needs from the conversation
// state machine.
type FSM interface {
	// InProgress reports whether the conversation awaits flow input.
	InProgress(c tele.Context) bool
	// HandleText runs the step handler registered for the conversation's
	// current step.
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the free-text route: conversations with an active flow go
// to the state machine, bare command words are resolved through the registry,
// everything else falls back.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsm != nil && fsm.InProgress(c) {
			return handleWithSummary(c, "fsm", start, func() error {
				return fsm.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
