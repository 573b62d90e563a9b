// Package fsm drives the multi-message conversation flows: login, sending
// funds, bank withdrawals and default wallet selection. Each conversation
// owns a session whose step decides how the next free-text message is
// interpreted.
package fsm

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/session"
	"payoutbot/core/logger"
	tghelpers "payoutbot/core/telegram/helpers"
)

// Gateway is the slice of the payout API the flows need.
type Gateway interface {
	RequestEmailOTP(ctx context.Context, email string) (*copperx.OTPRequest, error)
	AuthenticateOTP(ctx context.Context, email, otp, sid string) (*copperx.AuthResult, error)
	Profile(ctx context.Context, token string) (*copperx.User, error)
	KYCStatus(ctx context.Context, token string) (string, error)
	WalletBalances(ctx context.Context, token string) ([]copperx.Wallet, error)
	SetDefaultWallet(ctx context.Context, token, walletID string) (*copperx.Wallet, error)
	SendToEmail(ctx context.Context, token string, req copperx.EmailTransferRequest) (*copperx.Transfer, error)
	SendToWallet(ctx context.Context, token string, req copperx.WalletTransferRequest) (*copperx.Transfer, error)
	WithdrawalQuote(ctx context.Context, token string, req copperx.QuoteRequest) (*copperx.Quote, error)
	SubmitWithdrawal(ctx context.Context, token string, req copperx.WithdrawalRequest) (*copperx.Transfer, error)
}

// Notifier manages the chat's deposit notification subscription.
type Notifier interface {
	Subscribe(ctx context.Context, token, orgID string, chatID int64) error
	Unsubscribe(chatID int64)
}

// stepFn interprets one free-text message for a session at a given step.
// It mutates the session; the engine persists it afterwards.
type stepFn func(c tele.Context, s *session.Session, text string) error

// Engine routes free-text messages by session step and exposes the flow
// entrypoints and callback actions.
type Engine struct {
	store    session.Store
	api      Gateway
	notifier Notifier
	steps    map[session.Step]stepFn
}

// New wires the engine's step table.
func New(store session.Store, api Gateway, notifier Notifier) *Engine {
	e := &Engine{store: store, api: api, notifier: notifier}
	e.steps = map[session.Step]stepFn{
		session.StepAwaitingEmail: e.stepEmail,
		session.StepAwaitingOtp:   e.stepOtp,

		session.StepAwaitingRecipientEmail: e.stepRecipientEmail,
		session.StepAwaitingAmount:         e.stepAmount,
		session.StepAwaitingCurrency:       e.stepUseButtons,

		session.StepAwaitingWalletAddress:  e.stepWalletAddress,
		session.StepAwaitingWalletAmount:   e.stepWalletAmount,
		session.StepAwaitingWalletCurrency: e.stepUseButtons,

		session.StepAwaitingWalletChoice: e.stepUseButtons,

		session.StepAwaitingBankAccountID:      e.stepBankAccountID,
		session.StepAwaitingWithdrawalAmount:   e.stepWithdrawalAmount,
		session.StepAwaitingWithdrawalCurrency: e.stepWithdrawalCurrency,
		session.StepAwaitingWithdrawalPurpose:  e.stepWithdrawalPurpose,
	}
	return e
}

func conversationKey(c tele.Context) session.Key {
	key := session.Key{}
	if s := c.Sender(); s != nil {
		key.UserID = s.ID
	}
	if ch := c.Chat(); ch != nil {
		key.ChatID = ch.ID
	}
	return key
}

func (e *Engine) load(c tele.Context) (session.Key, *session.Session, error) {
	key := conversationKey(c)
	ctx := tghelpers.BuildContext(c)
	s, err := e.store.Get(ctx, key)
	if err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "session.load",
			slog.String("status", "fail"),
			slog.Int64("user_id", key.UserID),
			slog.String("error", err.Error()),
		)
		return key, nil, err
	}
	return key, s, nil
}

// storeUnavailable answers an update whose session could not be loaded. The
// flow state is left untouched so the user can simply retry.
func (e *Engine) storeUnavailable(c tele.Context) error {
	return tghelpers.SendText(c, "⚠️ Something went wrong on our side. Please try again in a moment.")
}

func (e *Engine) persist(c tele.Context, key session.Key, s *session.Session) {
	ctx := tghelpers.BuildContext(c)
	if err := e.store.Put(ctx, key, s); err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "session.save",
			slog.String("status", "fail"),
			slog.Int64("user_id", key.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// InProgress reports whether the conversation's next text message belongs to
// an active flow.
func (e *Engine) InProgress(c tele.Context) bool {
	_, s, err := e.load(c)
	if err != nil {
		// Claim the update so HandleText replies instead of the fallback.
		return true
	}
	_, ok := e.steps[s.Step]
	return ok
}

// HandleText runs the step handler for the conversation's current step and
// persists the resulting session.
func (e *Engine) HandleText(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	fn, ok := e.steps[s.Step]
	if !ok {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	before := s.Step
	err = fn(c, s, c.Text())
	e.persist(c, key, s)

	logger.LogEvent(ctx, logger.FSM, slog.LevelDebug, "fsm.step",
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", key.UserID),
		slog.String("from", string(before)),
		slog.String("to", string(s.Step)),
	)
	return err
}

// Authorized implements the credential gate for protected commands and
// callbacks. Expired credentials are cleared so the next /login starts clean.
func (e *Engine) Authorized(ctx context.Context, userID, chatID int64) (bool, error) {
	key := session.Key{UserID: userID, ChatID: chatID}
	s, err := e.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if s.LoggedIn(time.Now()) {
		return true, nil
	}
	if s.Credentials.AccessToken != "" {
		s.Credentials = session.Credentials{}
		s.ResetFlow()
		if err := e.store.Put(ctx, key, s); err != nil {
			return false, err
		}
	}
	return false, nil
}

// stepUseButtons covers steps that expect an inline-keyboard choice rather
// than typed text.
func (e *Engine) stepUseButtons(c tele.Context, _ *session.Session, _ string) error {
	return tghelpers.SendText(c, "Please use the buttons above, or /cancel to abort.")
}

// CancelFlow aborts any in-progress flow and pending transaction.
func (e *Engine) CancelFlow(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	active := s.Step != session.StepIdle || s.Pending != nil
	s.ResetFlow()
	e.persist(c, key, s)

	if !active {
		return tghelpers.SendText(c, "Nothing to cancel.")
	}
	return tghelpers.SendText(c, "Cancelled.")
}
