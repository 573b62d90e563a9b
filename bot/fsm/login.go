package fsm

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/session"
	"payoutbot/core/logger"
	tghelpers "payoutbot/core/telegram/helpers"
	"payoutbot/core/telegram/keyboard"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpRe   = regexp.MustCompile(`^[0-9]{6}$`)
)

// StartLogin begins the email-OTP login flow.
func (e *Engine) StartLogin(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	if s.LoggedIn(time.Now()) {
		return tghelpers.SendText(c, fmt.Sprintf("You are already logged in as %s. Use /logout to switch accounts.", s.Email))
	}

	s.ResetFlow()
	s.Step = session.StepAwaitingEmail
	e.persist(c, key, s)

	return tghelpers.SendText(c, "Please enter your Copperx email address:",
		&tele.SendOptions{ReplyMarkup: keyboard.SingleCancelMarkup("cancel_flow")})
}

func (e *Engine) stepEmail(c tele.Context, s *session.Session, text string) error {
	email := strings.ToLower(strings.TrimSpace(text))
	if !emailRe.MatchString(email) {
		return tghelpers.SendText(c, "That doesn't look like an email address. Please try again:")
	}

	ctx := tghelpers.BuildContext(c)
	otp, err := e.api.RequestEmailOTP(ctx, email)
	if err != nil {
		s.ResetFlow()
		return tghelpers.SendText(c, "❌ Could not send the code: "+apiMessage(err)+"\nUse /login to try again.")
	}

	s.Login = session.LoginDraft{Email: email, SID: otp.SID}
	s.Step = session.StepAwaitingOtp
	return tghelpers.SendText(c, fmt.Sprintf("A 6-digit code was sent to %s. Please enter it:", email),
		&tele.SendOptions{ReplyMarkup: keyboard.SingleCancelMarkup("cancel_flow")})
}

func (e *Engine) stepOtp(c tele.Context, s *session.Session, text string) error {
	otp := strings.TrimSpace(text)
	if !otpRe.MatchString(otp) {
		return tghelpers.SendText(c, "The code is 6 digits. Please enter it again:")
	}
	if s.Login.Email == "" || s.Login.SID == "" {
		s.ResetFlow()
		return tghelpers.SendText(c, "Your login session expired. Use /login to start over.")
	}

	ctx := tghelpers.BuildContext(c)
	auth, err := e.api.AuthenticateOTP(ctx, s.Login.Email, otp, s.Login.SID)
	if err != nil {
		s.ResetFlow()
		return tghelpers.SendText(c, "❌ Login failed: "+apiMessage(err)+"\nUse /login to try again.")
	}

	s.Credentials = session.Credentials{AccessToken: auth.AccessToken, ExpireAt: auth.ExpireAt}
	s.Email = auth.User.Email
	s.OrganizationID = auth.User.OrganizationID
	s.Login = session.LoginDraft{}
	s.Step = session.StepIdle

	// Enrich the cached profile; the login itself already succeeded.
	if profile, err := e.api.Profile(ctx, auth.AccessToken); err == nil {
		if profile.Email != "" {
			s.Email = profile.Email
		}
		if profile.OrganizationID != "" {
			s.OrganizationID = profile.OrganizationID
		}
	}
	if kyc, err := e.api.KYCStatus(ctx, auth.AccessToken); err == nil {
		s.KYCStatus = kyc
	}

	if e.notifier != nil && s.OrganizationID != "" {
		if err := e.notifier.Subscribe(ctx, auth.AccessToken, s.OrganizationID, conversationKey(c).ChatID); err != nil {
			logger.LogEvent(ctx, logger.FSM, slog.LevelWarn, "login.subscribe",
				slog.String("status", "fail"),
				slog.String("error", err.Error()),
			)
		}
	}

	msg := fmt.Sprintf("✅ Logged in as %s.", s.Email)
	if s.KYCStatus != "" && !strings.EqualFold(s.KYCStatus, "approved") {
		msg += "\n\n⚠️ Your KYC is not approved yet. Some operations may be unavailable. Check /kyc for details."
	}
	return tghelpers.SendText(c, msg, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
}

// Logout drops credentials, session state and the deposit subscription.
func (e *Engine) Logout(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	if !s.LoggedIn(time.Now()) && s.Credentials.AccessToken == "" {
		return tghelpers.SendText(c, "You are not logged in.")
	}

	if e.notifier != nil {
		e.notifier.Unsubscribe(key.ChatID)
	}
	ctx := tghelpers.BuildContext(c)
	if err := e.store.Delete(ctx, key); err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "logout.clear",
			slog.String("status", "fail"),
			slog.String("error", err.Error()),
		)
		return tghelpers.SendText(c, "❌ Could not log you out. Please try again.")
	}
	return tghelpers.SendText(c, "✅ You have been logged out.")
}

// apiMessage surfaces the API's own message in user-facing replies; anything
// else is reported generically.
func apiMessage(err error) string {
	var apiErr *copperx.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "the service is unavailable right now"
}
