package fsm

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/money"
	"payoutbot/bot/session"
	tghelpers "payoutbot/core/telegram/helpers"
	"payoutbot/core/telegram/keyboard"
)

// StartWithdraw begins the bank withdrawal flow.
func (e *Engine) StartWithdraw(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	s.ResetFlow()
	s.Step = session.StepAwaitingBankAccountID
	e.persist(c, key, s)

	return tghelpers.SendText(c, "Enter the ID of the bank account to withdraw to:",
		&tele.SendOptions{ReplyMarkup: keyboard.SingleCancelMarkup("cancel_flow")})
}

func (e *Engine) stepBankAccountID(c tele.Context, s *session.Session, text string) error {
	id := strings.TrimSpace(text)
	if id == "" || strings.ContainsAny(id, " \t") {
		return tghelpers.SendText(c, "That doesn't look like a bank account ID. Please try again:")
	}
	s.Withdraw.BankAccountID = id
	s.Step = session.StepAwaitingWithdrawalAmount
	return tghelpers.SendText(c, "How much would you like to withdraw? Enter the amount:")
}

func (e *Engine) stepWithdrawalAmount(c tele.Context, s *session.Session, text string) error {
	amount := strings.TrimSpace(text)
	if !money.ValidAmount(amount) {
		return tghelpers.SendText(c, "Please enter a positive number, e.g. 100:")
	}
	s.Withdraw.Amount = amount
	s.Step = session.StepAwaitingWithdrawalCurrency
	return tghelpers.SendText(c, "Which currency? (e.g. USDC)")
}

func (e *Engine) stepWithdrawalCurrency(c tele.Context, s *session.Session, text string) error {
	currency := strings.ToUpper(strings.TrimSpace(text))
	if currency == "" || len(currency) > 10 {
		return tghelpers.SendText(c, "Please enter a currency symbol, e.g. USDC:")
	}
	s.Withdraw.Currency = apiCurrency(currency)
	s.Step = session.StepAwaitingWithdrawalPurpose
	return tghelpers.SendText(c, "What is the purpose of this withdrawal? (reply \"self\" if it's your own account)",
		&tele.SendOptions{ReplyMarkup: keyboard.ReplyButtons([]string{"self"})})
}

func (e *Engine) stepWithdrawalPurpose(c tele.Context, s *session.Session, text string) error {
	purpose := strings.ToLower(strings.TrimSpace(text))
	if purpose == "" {
		purpose = purposeSelf
	}
	s.Withdraw.PurposeCode = purpose

	if !s.LoggedIn(time.Now()) {
		s.Credentials = session.Credentials{}
		s.ResetFlow()
		return tghelpers.SendText(c, "🔒 Your session has expired. Use /login to sign in again.")
	}

	draft := s.Withdraw
	s.ResetFlow()

	ctx := tghelpers.BuildContext(c)
	wallets, err := e.api.WalletBalances(ctx, s.Credentials.AccessToken)
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not load your balances: "+apiMessage(err))
	}
	balance, ok := findBalance(wallets, draft.Currency)
	if !ok {
		return tghelpers.SendText(c, fmt.Sprintf("❌ You have no %s balance to withdraw from.", draft.Currency))
	}

	scaled, err := money.Scale(draft.Amount, balance.Decimals)
	if err != nil {
		return tghelpers.SendText(c, "❌ Invalid amount. Use /withdraw to start over.")
	}

	quote, err := e.api.WithdrawalQuote(ctx, s.Credentials.AccessToken, copperx.QuoteRequest{
		BankAccountID: draft.BankAccountID,
		Amount:        scaled,
		Currency:      draft.Currency,
		PurposeCode:   draft.PurposeCode,
	})
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not get a withdrawal quote: "+apiMessage(err))
	}

	transfer, err := e.api.SubmitWithdrawal(ctx, s.Credentials.AccessToken, copperx.WithdrawalRequest{
		BankAccountID:  draft.BankAccountID,
		QuotePayload:   quote.QuotePayload,
		QuoteSignature: quote.QuoteSignature,
		PurposeCode:    draft.PurposeCode,
	})
	if err != nil {
		return tghelpers.SendText(c, "❌ Withdrawal failed: "+apiMessage(err))
	}

	msg := fmt.Sprintf("✅ Withdrawal of %s %s submitted.", draft.Amount, draft.Currency)
	if quote.Fee != "" {
		msg += "\nFee: " + quote.Fee
	}
	if transfer != nil && transfer.ID != "" {
		msg += "\nReference: " + transfer.ID
	}
	return tghelpers.SendText(c, msg)
}
