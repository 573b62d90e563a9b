package fsm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"payoutbot/bot/copperx"
	"payoutbot/bot/session"
)

func TestLoginHappyPath(t *testing.T) {
	gw := &fakeGateway{kyc: "approved"}
	notifier := &fakeNotifier{}
	e, store := newEngine(gw, notifier)

	// /login
	c := newCtx(1, 1, "/login")
	require.NoError(t, e.StartLogin(c))
	require.Contains(t, c.lastSent(t), "email")
	require.Equal(t, session.StepAwaitingEmail, sessionOf(t, store, 1, 1).Step)

	// email
	c = newCtx(1, 1, "User@Example.com")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "6-digit code")

	s := sessionOf(t, store, 1, 1)
	require.Equal(t, session.StepAwaitingOtp, s.Step)
	require.Equal(t, "user@example.com", s.Login.Email, "email must be normalized")
	require.Equal(t, "sid-1", s.Login.SID)

	// otp
	c = newCtx(1, 1, "123456")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "Logged in")

	s = sessionOf(t, store, 1, 1)
	require.Equal(t, session.StepIdle, s.Step)
	require.True(t, s.LoggedIn(time.Now()))
	require.Empty(t, s.Login.SID, "login draft must be cleared")
	require.Equal(t, "org-1", s.OrganizationID)
	require.Equal(t, []string{"org-1"}, notifier.subscribed)
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	_ = e.StartLogin(newCtx(1, 1, "/login"))

	c := newCtx(1, 1, "not-an-email")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "doesn't look like an email")
	require.Equal(t, session.StepAwaitingEmail, sessionOf(t, store, 1, 1).Step)
}

func TestLoginOTPRequestFailureResetsFlow(t *testing.T) {
	gw := &fakeGateway{otpErr: &copperx.APIError{Message: "Account not found", StatusCode: 404}}
	e, store := newEngine(gw, &fakeNotifier{})
	_ = e.StartLogin(newCtx(1, 1, "/login"))

	c := newCtx(1, 1, "user@example.com")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "Account not found")
	require.Equal(t, session.StepIdle, sessionOf(t, store, 1, 1).Step)
}

func TestLoginRejectsMalformedOTP(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	_ = e.StartLogin(newCtx(1, 1, "/login"))
	_ = e.HandleText(newCtx(1, 1, "user@example.com"))

	c := newCtx(1, 1, "12ab56")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "6 digits")
	require.Equal(t, session.StepAwaitingOtp, sessionOf(t, store, 1, 1).Step)
}

func TestLoginOTPWithoutDraftExpires(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	key := session.Key{UserID: 1, ChatID: 1}

	// A session that somehow reached the OTP step without a draft.
	s := session.New()
	s.Step = session.StepAwaitingOtp
	_ = store.Put(context.Background(), key, s)

	c := newCtx(1, 1, "123456")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "expired")
	require.Equal(t, session.StepIdle, sessionOf(t, store, 1, 1).Step)
}

func TestLoginAuthFailureResetsToIdle(t *testing.T) {
	gw := &fakeGateway{authErr: &copperx.APIError{Message: "Invalid OTP", StatusCode: 401}}
	e, store := newEngine(gw, &fakeNotifier{})
	_ = e.StartLogin(newCtx(1, 1, "/login"))
	_ = e.HandleText(newCtx(1, 1, "user@example.com"))

	c := newCtx(1, 1, "123456")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "Invalid OTP")

	s := sessionOf(t, store, 1, 1)
	require.Equal(t, session.StepIdle, s.Step)
	require.False(t, s.LoggedIn(time.Now()))
}

func TestLoginWarnsWhenKYCNotApproved(t *testing.T) {
	gw := &fakeGateway{kyc: "pending"}
	e, _ := newEngine(gw, &fakeNotifier{})
	_ = e.StartLogin(newCtx(1, 1, "/login"))
	_ = e.HandleText(newCtx(1, 1, "user@example.com"))

	c := newCtx(1, 1, "123456")
	require.NoError(t, e.HandleText(c))
	require.Contains(t, c.lastSent(t), "KYC")
}

func TestLoginWhenAlreadyLoggedIn(t *testing.T) {
	e, store := newEngine(&fakeGateway{}, &fakeNotifier{})
	loggedInSession(store, 1, 1)

	c := newCtx(1, 1, "/login")
	require.NoError(t, e.StartLogin(c))
	require.Contains(t, c.lastSent(t), "already logged in")
	require.Equal(t, session.StepIdle, sessionOf(t, store, 1, 1).Step)
}

func TestLogoutClearsSessionAndSubscription(t *testing.T) {
	notifier := &fakeNotifier{}
	e, store := newEngine(&fakeGateway{}, notifier)
	loggedInSession(store, 1, 42)

	c := newCtx(1, 42, "/logout")
	require.NoError(t, e.Logout(c))
	require.Contains(t, c.lastSent(t), "logged out")
	require.Equal(t, []int64{42}, notifier.unsubscribed)
	require.False(t, sessionOf(t, store, 1, 42).LoggedIn(time.Now()))
}

func TestLogoutWhenNotLoggedIn(t *testing.T) {
	e, _ := newEngine(&fakeGateway{}, &fakeNotifier{})
	c := newCtx(1, 1, "/logout")
	require.NoError(t, e.Logout(c))
	require.Contains(t, c.lastSent(t), "not logged in")
}
