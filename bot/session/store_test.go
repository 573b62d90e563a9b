package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreMissingKeyReturnsIdle(t *testing.T) {
	store := NewMemoryStore()
	s, err := store.Get(context.Background(), Key{UserID: 1, ChatID: 1})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Step != StepIdle {
		t.Errorf("fresh session step = %q, want %q", s.Step, StepIdle)
	}
	if s.Pending != nil {
		t.Error("fresh session has a pending transaction")
	}
}

func TestMemoryStorePutGetIsolation(t *testing.T) {
	store := NewMemoryStore()
	key := Key{UserID: 7, ChatID: 7}

	s := New()
	s.Step = StepAwaitingOtp
	s.Login = LoginDraft{Email: "a@b.co", SID: "sid-1"}
	if err := store.Put(context.Background(), key, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Mutating the original after Put must not leak into the store.
	s.Step = StepIdle
	s.Login.SID = "mutated"

	got, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Step != StepAwaitingOtp || got.Login.SID != "sid-1" {
		t.Errorf("stored session mutated through caller reference: %+v", got)
	}

	// Mutating the returned copy must not affect the stored value either.
	got.Pending = &PendingTransaction{Kind: KindSendEmail}
	again, _ := store.Get(context.Background(), key)
	if again.Pending != nil {
		t.Error("returned session shares Pending with the store")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	key := Key{UserID: 9, ChatID: 9}

	s := New()
	s.Credentials = Credentials{AccessToken: "tok", ExpireAt: time.Now().Add(time.Hour).UnixMilli()}
	_ = store.Put(context.Background(), key, s)

	if err := store.Delete(context.Background(), key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ := store.Get(context.Background(), key)
	if got.LoggedIn(time.Now()) {
		t.Error("session survived Delete")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(context.Background(), Key{UserID: 404, ChatID: 404}); err != nil {
		t.Errorf("Delete on missing key: %v", err)
	}
}

func TestCredentialsValid(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"empty", Credentials{}, false},
		{"expired", Credentials{AccessToken: "t", ExpireAt: now.Add(-time.Minute).UnixMilli()}, false},
		{"valid", Credentials{AccessToken: "t", ExpireAt: now.Add(time.Hour).UnixMilli()}, true},
		{"token without expiry", Credentials{AccessToken: "t"}, false},
	}
	for _, tc := range cases {
		if got := tc.creds.Valid(now); got != tc.want {
			t.Errorf("%s: Valid = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResetFlowKeepsCredentials(t *testing.T) {
	s := New()
	s.Credentials = Credentials{AccessToken: "tok", ExpireAt: time.Now().Add(time.Hour).UnixMilli()}
	s.Email = "a@b.co"
	s.Step = StepAwaitingCurrency
	s.Transfer = TransferDraft{Recipient: "c@d.co", Amount: "12.5"}
	s.Pending = &PendingTransaction{Kind: KindSendEmail, Amount: "12500000"}

	s.ResetFlow()

	if s.Step != StepIdle || s.Pending != nil || s.Transfer != (TransferDraft{}) {
		t.Errorf("flow state not reset: %+v", s)
	}
	if !s.LoggedIn(time.Now()) || s.Email != "a@b.co" {
		t.Error("ResetFlow dropped credentials or cached profile")
	}
}
