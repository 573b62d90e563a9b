package fsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
	"payoutbot/bot/session"
)

// fakeTeleCtx implements the slice of tele.Context the flows touch. The
// embedded interface panics on anything unexpected.
type fakeTeleCtx struct {
	tele.Context
	update tele.Update
	user   *tele.User
	chat   *tele.Chat
	text   string
	cb     *tele.Callback
	store  map[string]any
	sent   []string
}

func newCtx(userID, chatID int64, text string) *fakeTeleCtx {
	return &fakeTeleCtx{
		user:  &tele.User{ID: userID},
		chat:  &tele.Chat{ID: chatID},
		text:  text,
		store: make(map[string]any),
	}
}

func newCallbackCtx(userID, chatID int64, unique, payload string) *fakeTeleCtx {
	c := newCtx(userID, chatID, "")
	c.cb = &tele.Callback{Unique: unique, Data: payload}
	return c
}

func (f *fakeTeleCtx) Update() tele.Update     { return f.update }
func (f *fakeTeleCtx) Sender() *tele.User      { return f.user }
func (f *fakeTeleCtx) Chat() *tele.Chat        { return f.chat }
func (f *fakeTeleCtx) Text() string            { return f.text }
func (f *fakeTeleCtx) Callback() *tele.Callback { return f.cb }
func (f *fakeTeleCtx) Get(k string) any        { return f.store[k] }
func (f *fakeTeleCtx) Set(k string, v any)     { f.store[k] = v }

func (f *fakeTeleCtx) Send(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func (f *fakeTeleCtx) EditOrSend(what any, opts ...any) error {
	return f.Send(what, opts...)
}

func (f *fakeTeleCtx) lastSent(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent, "no reply was sent")
	return f.sent[len(f.sent)-1]
}

// fakeGateway scripts API responses per test.
type fakeGateway struct {
	otp        *copperx.OTPRequest
	otpErr     error
	auth       *copperx.AuthResult
	authErr    error
	profile    *copperx.User
	kyc        string
	wallets    []copperx.Wallet
	walletsErr error

	emailSends  []copperx.EmailTransferRequest
	emailErr    error
	walletSends []copperx.WalletTransferRequest
	walletErr   error

	quote       *copperx.Quote
	quoteErr    error
	withdrawals []copperx.WithdrawalRequest
	withdrawErr error

	defaultsSet []string
	setErr      error
}

func (g *fakeGateway) RequestEmailOTP(_ context.Context, email string) (*copperx.OTPRequest, error) {
	if g.otpErr != nil {
		return nil, g.otpErr
	}
	if g.otp != nil {
		return g.otp, nil
	}
	return &copperx.OTPRequest{Email: email, SID: "sid-1"}, nil
}

func (g *fakeGateway) AuthenticateOTP(_ context.Context, email, otp, sid string) (*copperx.AuthResult, error) {
	if g.authErr != nil {
		return nil, g.authErr
	}
	if g.auth != nil {
		return g.auth, nil
	}
	return &copperx.AuthResult{
		AccessToken: "tok",
		ExpireAt:    time.Now().Add(time.Hour).UnixMilli(),
		User:        copperx.User{Email: email, OrganizationID: "org-1"},
	}, nil
}

func (g *fakeGateway) Profile(context.Context, string) (*copperx.User, error) {
	if g.profile != nil {
		return g.profile, nil
	}
	return &copperx.User{}, nil
}

func (g *fakeGateway) KYCStatus(context.Context, string) (string, error) {
	if g.kyc == "" {
		return "approved", nil
	}
	return g.kyc, nil
}

func (g *fakeGateway) WalletBalances(context.Context, string) ([]copperx.Wallet, error) {
	return g.wallets, g.walletsErr
}

func (g *fakeGateway) SetDefaultWallet(_ context.Context, _, walletID string) (*copperx.Wallet, error) {
	if g.setErr != nil {
		return nil, g.setErr
	}
	g.defaultsSet = append(g.defaultsSet, walletID)
	return &copperx.Wallet{WalletID: walletID, Network: "Polygon", IsDefault: true}, nil
}

func (g *fakeGateway) SendToEmail(_ context.Context, _ string, req copperx.EmailTransferRequest) (*copperx.Transfer, error) {
	if g.emailErr != nil {
		return nil, g.emailErr
	}
	g.emailSends = append(g.emailSends, req)
	return &copperx.Transfer{ID: "tr-1", Status: "pending"}, nil
}

func (g *fakeGateway) SendToWallet(_ context.Context, _ string, req copperx.WalletTransferRequest) (*copperx.Transfer, error) {
	if g.walletErr != nil {
		return nil, g.walletErr
	}
	g.walletSends = append(g.walletSends, req)
	return &copperx.Transfer{ID: "tr-2", Status: "pending"}, nil
}

func (g *fakeGateway) WithdrawalQuote(_ context.Context, _ string, req copperx.QuoteRequest) (*copperx.Quote, error) {
	if g.quoteErr != nil {
		return nil, g.quoteErr
	}
	if g.quote != nil {
		return g.quote, nil
	}
	return &copperx.Quote{QuotePayload: "qp", QuoteSignature: "qs", Fee: "1.50"}, nil
}

func (g *fakeGateway) SubmitWithdrawal(_ context.Context, _ string, req copperx.WithdrawalRequest) (*copperx.Transfer, error) {
	if g.withdrawErr != nil {
		return nil, g.withdrawErr
	}
	g.withdrawals = append(g.withdrawals, req)
	return &copperx.Transfer{ID: "tr-3", Status: "pending"}, nil
}

type fakeNotifier struct {
	subscribed   []string
	unsubscribed []int64
	subErr       error
}

func (n *fakeNotifier) Subscribe(_ context.Context, token, orgID string, chatID int64) error {
	if n.subErr != nil {
		return n.subErr
	}
	n.subscribed = append(n.subscribed, orgID)
	return nil
}

func (n *fakeNotifier) Unsubscribe(chatID int64) {
	n.unsubscribed = append(n.unsubscribed, chatID)
}

func newEngine(g *fakeGateway, n *fakeNotifier) (*Engine, session.Store) {
	store := session.NewMemoryStore()
	return New(store, g, n), store
}

func loggedInSession(store session.Store, userID, chatID int64) *session.Session {
	s := session.New()
	s.Credentials = session.Credentials{
		AccessToken: "tok",
		ExpireAt:    time.Now().Add(time.Hour).UnixMilli(),
	}
	s.Email = "me@example.com"
	s.OrganizationID = "org-1"
	_ = store.Put(context.Background(), session.Key{UserID: userID, ChatID: chatID}, s)
	return s
}

func sessionOf(t *testing.T, store session.Store, userID, chatID int64) *session.Session {
	t.Helper()
	s, err := store.Get(context.Background(), session.Key{UserID: userID, ChatID: chatID})
	require.NoError(t, err)
	return s
}

func TestInProgressOnlyDuringFlows(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})

	c := newCtx(1, 1, "hello")
	require.False(t, e.InProgress(c))

	s := session.New()
	s.Step = session.StepAwaitingEmail
	_ = store.Put(context.Background(), session.Key{UserID: 1, ChatID: 1}, s)
	require.True(t, e.InProgress(newCtx(1, 1, "hello")))
}

func TestHandleTextIgnoresIdleSessions(t *testing.T) {
	e, _ := newEngine(&fakeGateway{}, &fakeNotifier{})
	c := newCtx(1, 1, "random chatter")
	require.NoError(t, e.HandleText(c))
	require.Empty(t, c.sent)
}

// failingStore simulates a session backend outage.
type failingStore struct {
	session.Store
}

func (failingStore) Get(context.Context, session.Key) (*session.Session, error) {
	return nil, errors.New("connection refused")
}

func TestHandleTextReportsStoreOutage(t *testing.T) {
	gw := &fakeGateway{}
	e := New(failingStore{}, gw, &fakeNotifier{})

	c := newCtx(1, 1, "100")
	require.True(t, e.InProgress(c))
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "try again")
	require.Empty(t, gw.withdrawals)
	require.Empty(t, gw.emailSends)
}

func TestAuthorizedClearsExpiredCredentials(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	key := session.Key{UserID: 1, ChatID: 1}

	s := session.New()
	s.Credentials = session.Credentials{AccessToken: "tok", ExpireAt: time.Now().Add(-time.Minute).UnixMilli()}
	s.Step = session.StepAwaitingAmount
	_ = store.Put(context.Background(), key, s)

	ok, err := e.Authorized(context.Background(), 1, 1)
	require.NoError(t, err)
	require.False(t, ok)

	after := sessionOf(t, store, 1, 1)
	require.Empty(t, after.Credentials.AccessToken)
	require.Equal(t, session.StepIdle, after.Step)
}

func TestAuthorizedWithValidCredentials(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	ok, err := e.Authorized(context.Background(), 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCancelFlowResetsEverything(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	key := session.Key{UserID: 1, ChatID: 1}

	s := loggedInSession(store, 1, 1)
	s.Step = session.StepAwaitingCurrency
	s.Transfer = session.TransferDraft{Recipient: "a@b.co", Amount: "5"}
	s.Pending = &session.PendingTransaction{Kind: session.KindSendEmail}
	_ = store.Put(context.Background(), key, s)

	c := newCtx(1, 1, "/cancel")
	require.NoError(t, e.CancelFlow(c))
	require.Contains(t, c.lastSent(t), "Cancelled")

	after := sessionOf(t, store, 1, 1)
	require.Equal(t, session.StepIdle, after.Step)
	require.Nil(t, after.Pending)
	require.True(t, after.LoggedIn(time.Now()), "cancel must keep credentials")
}

func TestButtonStepsNudgeOnText(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	key := session.Key{UserID: 1, ChatID: 1}

	s := loggedInSession(store, 1, 1)
	s.Step = session.StepAwaitingCurrency
	_ = store.Put(context.Background(), key, s)

	c := newCtx(1, 1, "USDC please")
	require.True(t, e.InProgress(c))
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "buttons")
}
