package app

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/money"
	"payoutbot/bot/session"
	tg "payoutbot/core/telegram"
	"payoutbot/core/telegram/commands"
	"payoutbot/core/telegram/format"
	tghelpers "payoutbot/core/telegram/helpers"
	"payoutbot/core/telegram/keyboard"
)

func (a *App) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Welcome and main menu",
	})
	reg.RegisterCommand("/login", commands.Command{
		Handler:     a.engine.StartLogin,
		Description: "Log in with your Copperx email",
	})
	reg.RegisterCommand("/logout", commands.Command{
		Handler:     a.engine.Logout,
		Description: "Log out and clear your session",
	})
	reg.RegisterCommand("/balance", commands.Command{
		Handler:      a.handleBalance,
		Description:  "Show your wallet balances",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/defaultwallet", commands.Command{
		Handler:      a.handleDefaultWallet,
		Description:  "Show your default wallet",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/changedefaultwallet", commands.Command{
		Handler:      a.engine.StartChangeDefaultWallet,
		Description:  "Pick a different default wallet",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/send", commands.Command{
		Handler:      a.handleSendMenu,
		Description:  "Send funds",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/sendemail", commands.Command{
		Handler:      a.engine.StartSendEmail,
		Description:  "Send funds to an email address",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/sendwallet", commands.Command{
		Handler:      a.engine.StartSendWallet,
		Description:  "Send funds to an external wallet",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/withdraw", commands.Command{
		Handler:      a.engine.StartWithdraw,
		Description:  "Withdraw funds to your bank",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/transactions", commands.Command{
		Handler:      a.handleTransactions,
		Description:  "Show your recent transfers",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/kyc", commands.Command{
		Handler:      a.handleKYC,
		Description:  "Check your KYC status",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/profile", commands.Command{
		Handler:      a.handleProfile,
		Description:  "Show your account profile",
		RequiresAuth: true,
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.engine.CancelFlow,
		Description: "Cancel the current operation",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "List available commands",
	})

	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, "I didn't understand that. Use /help to see what I can do.")
	})
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return tghelpers.EditOrSend(c, "That button has expired. Use /help to start over.")
	})

	_ = reg.RegisterCallback("login_button", false, a.engine.StartLogin)
	_ = reg.RegisterCallback("help_button", false, a.handleHelp)
	_ = reg.RegisterCallback("cancel_flow", false, a.engine.CancelFlow)
	_ = reg.RegisterCallback("menu_send_email", true, a.engine.StartSendEmail)
	_ = reg.RegisterCallback("menu_send_wallet", true, a.engine.StartSendWallet)
	_ = reg.RegisterCallback("select_currency", true, a.engine.SelectCurrency)
	_ = reg.RegisterCallback("confirm_transaction", true, a.engine.Confirm)
	_ = reg.RegisterCallback("cancel_transaction", true, a.engine.Cancel)
	_ = reg.RegisterCallback("set_default", true, a.engine.ChooseWallet)
}

// token fetches the conversation's access token. Handlers behind the login
// gate can rely on it being present.
func (a *App) token(c tele.Context) string {
	ctx := tghelpers.BuildContext(c)
	key := session.Key{}
	if u := c.Sender(); u != nil {
		key.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		key.ChatID = ch.ID
	}
	s, err := a.store.Get(ctx, key)
	if err != nil {
		return ""
	}
	return s.Credentials.AccessToken
}

func (a *App) handleStart(c tele.Context) error {
	text := "👋 *Welcome to Copperx Payout*\n\n" +
		"I can manage your USDC directly from Telegram: check balances, " +
		"send funds to emails or wallets, and withdraw to your bank.\n\n" +
		"Get started by logging in."
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "🔑 Log in", Unique: "login_button", Data: "login"}},
		[]keyboard.InlineBtn{{Text: "❓ Help", Unique: "help_button", Data: "help"}},
	)
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) handleSendMenu(c tele.Context) error {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📧 To an email", Unique: "menu_send_email", Data: "email"}},
		[]keyboard.InlineBtn{{Text: "🔗 To a wallet address", Unique: "menu_send_wallet", Data: "wallet"}},
	)
	return tghelpers.SendText(c, "Where would you like to send funds?",
		&tele.SendOptions{ReplyMarkup: markup})
}

func (a *App) handleBalance(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	wallets, err := a.api.WalletBalances(ctx, a.token(c))
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not load your balances. Please try again later.")
	}
	if len(wallets) == 0 {
		return tghelpers.SendText(c, "You have no wallets yet.")
	}

	var b strings.Builder
	b.WriteString("💰 *Balances*\n")
	for _, w := range wallets {
		name := w.Network
		if w.IsDefault {
			name += " (default)"
		}
		fmt.Fprintf(&b, "\n*%s*\n", format.EscapeMarkdown(name))
		if len(w.Balances) == 0 {
			b.WriteString("  empty\n")
			continue
		}
		for _, bal := range w.Balances {
			human, err := money.FormatUnits(bal.Balance, bal.Decimals)
			if err != nil {
				human = bal.Balance
			}
			fmt.Fprintf(&b, "  %s %s\n", human, strings.ToUpper(bal.Symbol))
		}
	}
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleDefaultWallet(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	wallet, err := a.api.DefaultWallet(ctx, a.token(c))
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not load your default wallet. Please try again later.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⭐ *Default wallet*\n\nNetwork: %s\n", format.EscapeMarkdown(wallet.Network))
	for _, bal := range wallet.Balances {
		if bal.Address != "" {
			fmt.Fprintf(&b, "Address: `%s`\n", bal.Address)
			break
		}
	}
	b.WriteString("\nUse /changedefaultwallet to switch.")
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleTransactions(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	page, err := a.api.RecentTransfers(ctx, a.token(c), 1, 10)
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not load your transfers. Please try again later.")
	}
	if len(page.Data) == 0 {
		return tghelpers.SendText(c, "No transfers yet.")
	}

	var b strings.Builder
	b.WriteString("📒 *Recent transfers*\n\n")
	for _, tr := range page.Data {
		line := fmt.Sprintf("%s %s — %s (%s)", tr.Amount, strings.ToUpper(tr.Currency), tr.Type, tr.Status)
		b.WriteString(format.EscapeMarkdown(line))
		b.WriteString("\n")
	}
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleKYC(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	status, err := a.api.KYCStatus(ctx, a.token(c))
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not check your KYC status. Please try again later.")
	}
	if strings.EqualFold(status, "approved") {
		return tghelpers.SendText(c, "✅ Your KYC is approved. All features are available.")
	}
	return tghelpers.SendText(c, fmt.Sprintf(
		"⚠️ Your KYC status is %q. Complete verification on the Copperx platform to unlock all features.", status))
}

func (a *App) handleProfile(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	profile, err := a.api.Profile(ctx, a.token(c))
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not load your profile. Please try again later.")
	}

	var b strings.Builder
	b.WriteString("👤 *Profile*\n\n")
	fmt.Fprintf(&b, "Email: %s\n", format.EscapeMarkdown(profile.Email))
	if profile.FirstName != "" || profile.LastName != "" {
		fmt.Fprintf(&b, "Name: %s\n", format.EscapeMarkdown(strings.TrimSpace(profile.FirstName+" "+profile.LastName)))
	}
	if profile.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", format.EscapeMarkdown(profile.Role))
	}
	if profile.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", format.EscapeMarkdown(profile.Status))
	}
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString("*Available commands*\n\n")
	for _, cmd := range a.registry.ListCommands(true) {
		fmt.Fprintf(&b, "%s — %s\n", cmd.Text, format.EscapeMarkdown(cmd.Description))
	}
	return tghelpers.EditOrSendMD(c, b.String())
}
