package middleware

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"payoutbot/core/logger"
	tghelpers "payoutbot/core/telegram/helpers"
)

// CredentialCheck reports whether the conversation holds valid, unexpired
// platform credentials. Implementations may clear expired credentials as a
// side effect.
type CredentialCheck interface {
	Authorized(ctx context.Context, userID, chatID int64) (bool, error)
}

// AuthOptions defines how login-gated dispatch should behave.
type AuthOptions struct {
	Check CredentialCheck
	// OnReject runs when the conversation is not logged in; usually a login prompt.
	OnReject tele.HandlerFunc
}

// AuthGateMiddleware blocks downstream handlers unless the conversation is
// logged in with unexpired credentials. Rejection never reaches the state
// machine.
func AuthGateMiddleware(opts AuthOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Check == nil {
				return next(c)
			}
			user := c.Sender()
			chat := c.Chat()
			if user == nil || chat == nil {
				return nil
			}
			ctx := tghelpers.BuildContext(c)
			ok, err := opts.Check.Authorized(ctx, user.ID, chat.ID)
			if err != nil {
				logger.TG.Error("auth gate check failed",
					slog.String("event", "tg.auth_gate"),
					slog.Int64("user_id", user.ID),
					slog.String("err", err.Error()),
				)
				return c.Send("Something went wrong. Please try again.")
			}
			if !ok {
				logger.TG.Debug("auth gate rejected",
					slog.String("event", "tg.auth_gate"),
					slog.Int64("user_id", user.ID),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
