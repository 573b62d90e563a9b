package fsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payoutbot/bot/copperx"
	"payoutbot/bot/session"
)

func usdcWallets() []copperx.Wallet {
	return []copperx.Wallet{
		{WalletID: "w1", IsDefault: true, Network: "Polygon", Balances: []copperx.Balance{
			{Decimals: 6, Balance: "100000000", Symbol: "usdc"},
		}},
	}
}

func TestSendEmailFlowBuildsScaledPending(t *testing.T) {
	gw := &fakeGateway{wallets: usdcWallets()}
	e, store := newEngine(gw, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	require.NoError(t, e.StartSendEmail(newCtx(1, 1, "/sendemail")))
	require.NoError(t, e.HandleText(newCtx(1, 1, "Friend@Example.com")))
	require.NoError(t, e.HandleText(newCtx(1, 1, "12.5")))

	s := sessionOf(t, store, 1, 1)
	require.Equal(t, session.StepAwaitingCurrency, s.Step)
	require.Equal(t, "friend@example.com", s.Transfer.Recipient)

	// USD on the keyboard settles as USDC; symbol matching is case-insensitive.
	c := newCallbackCtx(1, 1, "select_currency", "USD")
	require.NoError(t, e.SelectCurrency(c))
	require.Contains(t, c.lastSent(t), "12.5 USDC")
	require.Contains(t, c.lastSent(t), "friend@example.com")

	s = sessionOf(t, store, 1, 1)
	require.Equal(t, session.StepIdle, s.Step)
	require.NotNil(t, s.Pending)
	require.Equal(t, session.KindSendEmail, s.Pending.Kind)
	require.Equal(t, "12500000", s.Pending.Amount, "amount must be scaled by 10^decimals exactly once")
	require.Equal(t, "USDC", s.Pending.Currency)
	require.Equal(t, "self", s.Pending.PurposeCode)
}

func TestSendRejectsBadAmount(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	_ = e.StartSendEmail(newCtx(1, 1, "/sendemail"))
	_ = e.HandleText(newCtx(1, 1, "friend@example.com"))

	c := newCtx(1, 1, "twelve")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "positive number")
	require.Equal(t, session.StepAwaitingAmount, sessionOf(t, store, 1, 1).Step)
}

func TestSelectCurrencyWithoutBalanceAborts(t *testing.T) {
	gw := &fakeGateway{wallets: []copperx.Wallet{{WalletID: "w1", Balances: []copperx.Balance{
		{Decimals: 6, Balance: "5", Symbol: "USDT"},
	}}}}
	e, store := newEngine(gw, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	_ = e.StartSendEmail(newCtx(1, 1, "/sendemail"))
	_ = e.HandleText(newCtx(1, 1, "friend@example.com"))
	_ = e.HandleText(newCtx(1, 1, "12.5"))

	c := newCallbackCtx(1, 1, "select_currency", "USDC")
	require.NoError(t, e.SelectCurrency(c))
	require.Contains(t, c.lastSent(t), "no USDC balance")

	s := sessionOf(t, store, 1, 1)
	require.Nil(t, s.Pending, "aborted selection must leave no pending transaction")
	require.Equal(t, session.StepIdle, s.Step)
}

func TestSelectCurrencyOutsideFlow(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	c := newCallbackCtx(1, 1, "select_currency", "USDC")
	require.NoError(t, e.SelectCurrency(c))
	require.Contains(t, c.lastSent(t), "no transfer in progress")
	require.Nil(t, sessionOf(t, store, 1, 1).Pending)
}

func TestSendWalletFlow(t *testing.T) {
	gw := &fakeGateway{wallets: usdcWallets()}
	e, store := newEngine(gw, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	require.NoError(t, e.StartSendWallet(newCtx(1, 1, "/sendwallet")))
	require.NoError(t, e.HandleText(newCtx(1, 1, "abc123")))
	require.NoError(t, e.HandleText(newCtx(1, 1, "5")))

	c := newCallbackCtx(1, 1, "select_currency", "USD")
	require.NoError(t, e.SelectCurrency(c))

	s := sessionOf(t, store, 1, 1)
	require.NotNil(t, s.Pending)
	require.Equal(t, session.KindSendWallet, s.Pending.Kind)
	require.Equal(t, "abc123", s.Pending.Recipient)
	require.Equal(t, "5000000", s.Pending.Amount)
	require.Equal(t, "USDC", s.Pending.Currency)
}

func TestSendWalletRejectsBadAddress(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	loggedInSession(store, 1, 1)
	_ = e.StartSendWallet(newCtx(1, 1, "/sendwallet"))

	c := newCtx(1, 1, "not valid!")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "wallet address")
	require.Equal(t, session.StepAwaitingWalletAddress, sessionOf(t, store, 1, 1).Step)
}

func TestConfirmExecutesEmailTransfer(t *testing.T) {
	gw := &fakeGateway{wallets: usdcWallets()}
	e, store := newEngine(gw, &fakeNotifier{})
	s := loggedInSession(store, 1, 1)
	s.Pending = &session.PendingTransaction{
		Kind: session.KindSendEmail, Recipient: "friend@example.com",
		Amount: "12500000", Currency: "USDC", PurposeCode: "self",
	}
	_ = store.Put(context.Background(), session.Key{UserID: 1, ChatID: 1}, s)

	c := newCallbackCtx(1, 1, "confirm_transaction", "confirm")
	require.NoError(t, e.Confirm(c))
	require.Contains(t, c.lastSent(t), "✅")

	require.Len(t, gw.emailSends, 1)
	require.Equal(t, "12500000", gw.emailSends[0].Amount)
	require.Equal(t, "self", gw.emailSends[0].PurposeCode)
	require.Nil(t, sessionOf(t, store, 1, 1).Pending)
}

func TestConfirmFailureStillClearsPending(t *testing.T) {
	gw := &fakeGateway{emailErr: &copperx.APIError{Message: "Insufficient balance", StatusCode: 422}}
	e, store := newEngine(gw, &fakeNotifier{})
	s := loggedInSession(store, 1, 1)
	s.Pending = &session.PendingTransaction{
		Kind: session.KindSendEmail, Recipient: "friend@example.com",
		Amount: "12500000", Currency: "USDC", PurposeCode: "self",
	}
	_ = store.Put(context.Background(), session.Key{UserID: 1, ChatID: 1}, s)

	c := newCallbackCtx(1, 1, "confirm_transaction", "confirm")
	require.NoError(t, e.Confirm(c))
	require.Contains(t, c.lastSent(t), "Insufficient balance")
	require.Nil(t, sessionOf(t, store, 1, 1).Pending, "failed transfer must not stay pending")
}

func TestConfirmNetworkErrorStillClearsPending(t *testing.T) {
	gw := &fakeGateway{emailErr: errors.New("dial tcp: connection refused")}
	e, store := newEngine(gw, &fakeNotifier{})
	s := loggedInSession(store, 1, 1)
	s.Pending = &session.PendingTransaction{
		Kind: session.KindSendEmail, Recipient: "friend@example.com",
		Amount: "12500000", Currency: "USDC", PurposeCode: "self",
	}
	_ = store.Put(context.Background(), session.Key{UserID: 1, ChatID: 1}, s)

	c := newCallbackCtx(1, 1, "confirm_transaction", "confirm")
	require.NoError(t, e.Confirm(c))
	require.Contains(t, c.lastSent(t), "❌")

	after := sessionOf(t, store, 1, 1)
	require.Nil(t, after.Pending)
	require.Equal(t, session.StepIdle, after.Step)
}

func TestConfirmWithNothingPending(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	c := newCallbackCtx(1, 1, "confirm_transaction", "confirm")
	require.NoError(t, e.Confirm(c))
	require.Equal(t, "No pending transaction.", c.lastSent(t))
}

func TestCancelDiscardsPending(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	s := loggedInSession(store, 1, 1)
	s.Pending = &session.PendingTransaction{Kind: session.KindSendEmail, Amount: "1"}
	_ = store.Put(context.Background(), session.Key{UserID: 1, ChatID: 1}, s)

	c := newCallbackCtx(1, 1, "cancel_transaction", "cancel")
	require.NoError(t, e.Cancel(c))
	require.Contains(t, c.lastSent(t), "cancelled")

	after := sessionOf(t, store, 1, 1)
	require.Nil(t, after.Pending)
	require.True(t, after.LoggedIn(time.Now()))
}

func TestChangeDefaultWallet(t *testing.T) {
	gw := &fakeGateway{wallets: []copperx.Wallet{
		{WalletID: "w1", Network: "Polygon", IsDefault: true},
		{WalletID: "w2", Network: "Arbitrum"},
	}}
	e, store := newEngine(gw, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	c := newCtx(1, 1, "/changedefaultwallet")
	require.NoError(t, e.StartChangeDefaultWallet(c))
	require.Contains(t, c.lastSent(t), "default wallet")
	require.Equal(t, session.StepAwaitingWalletChoice, sessionOf(t, store, 1, 1).Step)

	cb := newCallbackCtx(1, 1, "set_default", "w2")
	require.NoError(t, e.ChooseWallet(cb))
	require.Contains(t, cb.lastSent(t), "✅")
	require.Equal(t, []string{"w2"}, gw.defaultsSet)
	require.Equal(t, session.StepIdle, sessionOf(t, store, 1, 1).Step)
}
