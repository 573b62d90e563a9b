// Package session holds per-conversation state for the payout bot: the
// active flow step, login credentials and any partially-built transaction.
package session

import "time"

// Step identifies where a conversation currently is in a multi-message flow.
type Step string

const (
	StepIdle Step = "idle"

	// Login flow.
	StepAwaitingEmail Step = "awaiting_email"
	StepAwaitingOtp   Step = "awaiting_otp"

	// Default wallet selection.
	StepAwaitingWalletChoice Step = "awaiting_wallet_choice"

	// Send to email flow.
	StepAwaitingRecipientEmail Step = "awaiting_recipient_email"
	StepAwaitingAmount         Step = "awaiting_amount"
	StepAwaitingCurrency       Step = "awaiting_currency"

	// Send to external wallet flow.
	StepAwaitingWalletAddress  Step = "awaiting_wallet_address"
	StepAwaitingWalletAmount   Step = "awaiting_wallet_amount"
	StepAwaitingWalletCurrency Step = "awaiting_wallet_currency"

	// Bank withdrawal flow.
	StepAwaitingBankAccountID      Step = "awaiting_bank_account_id"
	StepAwaitingWithdrawalAmount   Step = "awaiting_withdrawal_amount"
	StepAwaitingWithdrawalCurrency Step = "awaiting_withdrawal_currency"
	StepAwaitingWithdrawalPurpose  Step = "awaiting_withdrawal_purpose"
)

// TransferKind discriminates pending transactions awaiting confirmation.
type TransferKind string

const (
	KindSendEmail  TransferKind = "send_email"
	KindSendWallet TransferKind = "send_wallet"
)

// Credentials are the bearer token obtained from the email-OTP login.
// ExpireAt is a unix timestamp in milliseconds, as reported by the API.
type Credentials struct {
	AccessToken string `json:"access_token,omitempty"`
	ExpireAt    int64  `json:"expire_at,omitempty"`
}

// Valid reports whether the token exists and has not expired.
func (c Credentials) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.UnixMilli() < c.ExpireAt
}

// LoginDraft carries the intermediate login state between the email and
// OTP prompts. SID binds the OTP to the original request.
type LoginDraft struct {
	Email string `json:"email,omitempty"`
	SID   string `json:"sid,omitempty"`
}

// TransferDraft accumulates the answers of a send flow before the
// confirmation prompt is shown.
type TransferDraft struct {
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// WithdrawDraft accumulates the answers of a bank withdrawal flow.
type WithdrawDraft struct {
	BankAccountID string `json:"bank_account_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	PurposeCode   string `json:"purpose_code,omitempty"`
}

// PendingTransaction is a fully-specified transfer waiting for an explicit
// confirm or cancel. Amount is already scaled to integer base units.
type PendingTransaction struct {
	Kind        TransferKind `json:"kind"`
	Recipient   string       `json:"recipient"`
	Amount      string       `json:"amount"`
	Currency    string       `json:"currency"`
	PurposeCode string       `json:"purpose_code"`
}

// Session is the full per-conversation state. It is serialized as JSON by
// the persistent store, so every field carries a tag.
type Session struct {
	Step        Step        `json:"step"`
	Credentials Credentials `json:"credentials"`

	Login    LoginDraft          `json:"login"`
	Transfer TransferDraft       `json:"transfer"`
	Withdraw WithdrawDraft       `json:"withdraw"`
	Pending  *PendingTransaction `json:"pending,omitempty"`

	// Profile fields cached at login time.
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	KYCStatus      string `json:"kyc_status,omitempty"`
}

// New returns an idle session with no credentials.
func New() *Session {
	return &Session{Step: StepIdle}
}

// Clone returns an independent copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return &out
}

// ResetFlow drops any in-progress flow state but keeps credentials and the
// cached profile.
func (s *Session) ResetFlow() {
	s.Step = StepIdle
	s.Login = LoginDraft{}
	s.Transfer = TransferDraft{}
	s.Withdraw = WithdrawDraft{}
	s.Pending = nil
}

// LoggedIn reports whether the session holds unexpired credentials.
func (s *Session) LoggedIn(now time.Time) bool {
	return s.Credentials.Valid(now)
}
