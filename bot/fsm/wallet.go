package fsm

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/session"
	"payoutbot/core/telegram/callbacks"
	tghelpers "payoutbot/core/telegram/helpers"
	"payoutbot/core/telegram/keyboard"
)

// StartChangeDefaultWallet lists the account's wallets on an inline keyboard
// so one can be picked as the default for outgoing transfers.
func (e *Engine) StartChangeDefaultWallet(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}

	ctx := tghelpers.BuildContext(c)
	wallets, err := e.api.WalletBalances(ctx, s.Credentials.AccessToken)
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not load your wallets: "+apiMessage(err))
	}
	if len(wallets) == 0 {
		return tghelpers.SendText(c, "You have no wallets yet.")
	}

	buttons := make([]keyboard.InlineBtn, 0, len(wallets))
	for _, w := range wallets {
		label := w.Network
		if w.IsDefault {
			label += " (current default)"
		}
		buttons = append(buttons, keyboard.InlineBtn{Text: label, Unique: "set_default", Data: w.WalletID})
	}

	s.ResetFlow()
	s.Step = session.StepAwaitingWalletChoice
	e.persist(c, key, s)

	return tghelpers.SendText(c, "Pick your default wallet:",
		&tele.SendOptions{ReplyMarkup: keyboard.InlineButtons(buttons)})
}

// ChooseWallet applies a default wallet selection made on the keyboard.
func (e *Engine) ChooseWallet(c tele.Context) error {
	key, s, err := e.load(c)
	if err != nil {
		return e.storeUnavailable(c)
	}

	walletID := strings.TrimSpace(callbacks.Payload(c))
	if walletID == "" {
		return tghelpers.EditOrSend(c, "No wallet selected. Use /changedefaultwallet to try again.")
	}

	ctx := tghelpers.BuildContext(c)
	wallet, err := e.api.SetDefaultWallet(ctx, s.Credentials.AccessToken, walletID)

	s.ResetFlow()
	e.persist(c, key, s)

	if err != nil {
		return tghelpers.EditOrSend(c, "❌ Could not change the default wallet: "+apiMessage(err))
	}
	network := "selected network"
	if wallet != nil && wallet.Network != "" {
		network = wallet.Network
	}
	return tghelpers.EditOrSend(c, fmt.Sprintf("✅ Default wallet set to %s.", network))
}
