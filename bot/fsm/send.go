package fsm

import (
	"fmt"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/money"
	"payoutbot/bot/session"
	"payoutbot/core/telegram/callbacks"
	tghelpers "payoutbot/core/telegram/helpers"
	"payoutbot/core/telegram/keyboard"
)

// purposeSelf is the default purpose code attached to transfers.
const purposeSelf = "self"

// walletAddrRe accepts alphanumeric wallet addresses.
var walletAddrRe = regexp.MustCompile(`^[0-9A-Za-z]{6,}$`)

// SupportedCurrencies are the symbols offered on the currency keyboard.
var SupportedCurrencies = []string{"USD", "USDC", "USDT"}

// apiCurrency maps a displayed currency to the symbol the API settles in.
func apiCurrency(currency string) string {
	if strings.EqualFold(currency, "USD") {
		return "USDC"
	}
	return strings.ToUpper(currency)
}

// StartSendEmail begins the send-to-email flow.
func (e *Engine) StartSendEmail(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	s.ResetFlow()
	s.Step = session.StepAwaitingRecipientEmail
	e.persist(c, key, s)

	return tghelpers.SendText(c, "Who is receiving the funds? Enter the recipient's email address:",
		&tele.SendOptions{ReplyMarkup: keyboard.SingleCancelMarkup("cancel_flow")})
}

// StartSendWallet begins the send-to-external-wallet flow.
func (e *Engine) StartSendWallet(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}
	s.ResetFlow()
	s.Step = session.StepAwaitingWalletAddress
	e.persist(c, key, s)

	return tghelpers.SendText(c, "Enter the destination wallet address:",
		&tele.SendOptions{ReplyMarkup: keyboard.SingleCancelMarkup("cancel_flow")})
}

func (e *Engine) stepRecipientEmail(c tele.Context, s *session.Session, text string) error {
	email := strings.ToLower(strings.TrimSpace(text))
	if !emailRe.MatchString(email) {
		return tghelpers.SendText(c, "That doesn't look like an email address. Please try again:")
	}
	s.Transfer.Recipient = email
	s.Step = session.StepAwaitingAmount
	return tghelpers.SendText(c, "How much would you like to send? Enter the amount:")
}

func (e *Engine) stepAmount(c tele.Context, s *session.Session, text string) error {
	amount := strings.TrimSpace(text)
	if !money.ValidAmount(amount) {
		return tghelpers.SendText(c, "Please enter a positive number, e.g. 12.5:")
	}
	s.Transfer.Amount = amount
	s.Step = session.StepAwaitingCurrency
	return tghelpers.SendText(c, "Select the currency:",
		&tele.SendOptions{ReplyMarkup: currencyKeyboard()})
}

func (e *Engine) stepWalletAddress(c tele.Context, s *session.Session, text string) error {
	address := strings.TrimSpace(text)
	if !walletAddrRe.MatchString(address) {
		return tghelpers.SendText(c, "That doesn't look like a wallet address. Please try again:")
	}
	s.Transfer.Recipient = address
	s.Step = session.StepAwaitingWalletAmount
	return tghelpers.SendText(c, "How much would you like to send? Enter the amount:")
}

func (e *Engine) stepWalletAmount(c tele.Context, s *session.Session, text string) error {
	amount := strings.TrimSpace(text)
	if !money.ValidAmount(amount) {
		return tghelpers.SendText(c, "Please enter a positive number, e.g. 12.5:")
	}
	s.Transfer.Amount = amount
	s.Step = session.StepAwaitingWalletCurrency
	return tghelpers.SendText(c, "Select the currency:",
		&tele.SendOptions{ReplyMarkup: currencyKeyboard()})
}

// SelectCurrency finalizes a send flow: it resolves the asset's decimal
// precision from the wallet balances, scales the amount to base units and
// parks the transfer as pending, awaiting an explicit confirmation.
func (e *Engine) SelectCurrency(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}

	var kind session.TransferKind
	switch s.Step {
	case session.StepAwaitingCurrency:
		kind = session.KindSendEmail
	case session.StepAwaitingWalletCurrency:
		kind = session.KindSendWallet
	default:
		return tghelpers.EditOrSend(c, "There is no transfer in progress. Use /send to start one.")
	}

	chosen := strings.TrimSpace(callbacks.Payload(c))
	if chosen == "" {
		return tghelpers.EditOrSend(c, "No currency selected. Use /send to start over.")
	}
	settleIn := apiCurrency(chosen)

	ctx := tghelpers.BuildContext(c)
	wallets, err := e.api.WalletBalances(ctx, s.Credentials.AccessToken)
	if err != nil {
		s.ResetFlow()
		e.persist(c, key, s)
		return tghelpers.EditOrSend(c, "❌ Could not load your balances: "+apiMessage(err))
	}

	balance, ok := findBalance(wallets, settleIn)
	if !ok {
		s.ResetFlow()
		e.persist(c, key, s)
		return tghelpers.EditOrSend(c, fmt.Sprintf("❌ You have no %s balance to send from.", settleIn))
	}

	scaled, err := money.Scale(s.Transfer.Amount, balance.Decimals)
	if err != nil {
		s.ResetFlow()
		e.persist(c, key, s)
		return tghelpers.EditOrSend(c, "❌ Invalid amount. Use /send to start over.")
	}

	s.Pending = &session.PendingTransaction{
		Kind:        kind,
		Recipient:   s.Transfer.Recipient,
		Amount:      scaled,
		Currency:    settleIn,
		PurposeCode: purposeSelf,
	}
	human := s.Transfer.Amount
	s.Transfer = session.TransferDraft{}
	s.Step = session.StepIdle
	e.persist(c, key, s)

	summary := fmt.Sprintf("You are about to send %s %s to %s.\n\nConfirm?",
		human, settleIn, s.Pending.Recipient)
	return tghelpers.EditOrSend(c, summary, confirmKeyboard())
}

// findBalance locates an asset balance by symbol, case-insensitively, across
// all wallets.
func findBalance(wallets []copperx.Wallet, symbol string) (copperx.Balance, bool) {
	for _, w := range wallets {
		for _, b := range w.Balances {
			if strings.EqualFold(b.Symbol, symbol) {
				return b, true
			}
		}
	}
	return copperx.Balance{}, false
}

func currencyKeyboard() *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(SupportedCurrencies))
	for _, cur := range SupportedCurrencies {
		buttons = append(buttons, keyboard.InlineBtn{Text: cur, Unique: "select_currency", Data: cur})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 3)
}

func confirmKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Confirm", Unique: "confirm_transaction", Data: "confirm"},
		{Text: "🚫 Cancel", Unique: "cancel_transaction", Data: "cancel"},
	})
}
