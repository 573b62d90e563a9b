package fsm

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/session"
	tghelpers "payoutbot/core/telegram/helpers"
)

// Confirm executes the parked pending transaction. The pending slot is
// cleared whether the transfer succeeds or fails, so a retry always goes
// through a fresh flow.
func (e *Engine) Confirm(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	if s.Pending == nil {
		return tghelpers.EditOrSend(c, "No pending transaction.")
	}

	pending := *s.Pending
	s.Pending = nil
	s.Step = session.StepIdle
	e.persist(c, key, s)

	ctx := tghelpers.BuildContext(c)
	var transfer *copperx.Transfer
	switch pending.Kind {
	case session.KindSendEmail:
		transfer, err = e.api.SendToEmail(ctx, s.Credentials.AccessToken, copperx.EmailTransferRequest{
			Email:       pending.Recipient,
			Amount:      pending.Amount,
			Currency:    pending.Currency,
			PurposeCode: pending.PurposeCode,
		})
	case session.KindSendWallet:
		transfer, err = e.api.SendToWallet(ctx, s.Credentials.AccessToken, copperx.WalletTransferRequest{
			WalletAddress: pending.Recipient,
			Amount:        pending.Amount,
			Currency:      pending.Currency,
			PurposeCode:   pending.PurposeCode,
		})
	default:
		return tghelpers.EditOrSend(c, "No pending transaction.")
	}

	if err != nil {
		return tghelpers.EditOrSend(c, "❌ Transfer failed: "+apiMessage(err))
	}

	msg := fmt.Sprintf("✅ Sent %s to %s.", pending.Currency, pending.Recipient)
	if transfer != nil && transfer.ID != "" {
		msg += "\nReference: " + transfer.ID
	}
	return tghelpers.EditOrSend(c, msg)
}

// Cancel discards any pending transaction unconditionally.
func (e *Engine) Cancel(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	s.Pending = nil
	s.Step = session.StepIdle
	e.persist(c, key, s)
	return tghelpers.EditOrSend(c, "Transaction cancelled.")
}
