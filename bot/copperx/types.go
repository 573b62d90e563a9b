package copperx

// OTPRequest is the handle returned when an email OTP is requested. The SID
// must be echoed back together with the OTP to complete authentication.
type OTPRequest struct {
	Email string `json:"email"`
	SID   string `json:"sid"`
}

// User is the profile subset embedded in authentication responses.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	Status         string `json:"status"`
}

// AuthResult is the outcome of a successful OTP authentication.
// ExpireAt is a unix timestamp in milliseconds.
type AuthResult struct {
	AccessToken string `json:"accessToken"`
	ExpireAt    int64  `json:"expireAt"`
	User        User   `json:"user"`
}

// KYCResult reports the verification status of the account.
type KYCResult struct {
	Status string `json:"status"`
}

// Balance is a single asset balance inside a wallet. Balance is an integer
// amount in base units; Decimals gives the asset precision.
type Balance struct {
	Decimals int    `json:"decimals"`
	Balance  string `json:"balance"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
}

// Wallet is one custodial wallet, possibly holding several asset balances.
type Wallet struct {
	WalletID  string    `json:"walletId"`
	IsDefault bool      `json:"isDefault"`
	Network   string    `json:"network"`
	Balances  []Balance `json:"balances"`
}

// EmailTransferRequest sends funds to another account identified by email.
// Amount is already scaled to integer base units.
type EmailTransferRequest struct {
	Email       string `json:"email"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	PurposeCode string `json:"purposeCode"`
}

// WalletTransferRequest sends funds to an external wallet address.
type WalletTransferRequest struct {
	WalletAddress string `json:"walletAddress"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	PurposeCode   string `json:"purposeCode"`
}

// Transfer is one row of the transfer history, and also the acknowledgement
// returned by the send endpoints.
type Transfer struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Recipient string `json:"recipient,omitempty"`
}

// TransferPage is a paginated slice of the transfer history.
type TransferPage struct {
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Count int        `json:"count"`
	Data  []Transfer `json:"data"`
}

// QuoteRequest asks for an offramp quote for a bank withdrawal.
type QuoteRequest struct {
	BankAccountID string `json:"bankAccountId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	PurposeCode   string `json:"purposeCode"`
}

// Quote is a signed offramp quote that must accompany the withdrawal.
type Quote struct {
	QuotePayload   string `json:"quotePayload"`
	QuoteSignature string `json:"quoteSignature"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Fee            string `json:"fee,omitempty"`
}

// WithdrawalRequest submits a quoted bank withdrawal.
type WithdrawalRequest struct {
	BankAccountID  string `json:"bankAccountId"`
	QuotePayload   string `json:"quotePayload"`
	QuoteSignature string `json:"quoteSignature"`
	PurposeCode    string `json:"purposeCode"`
}

// ChannelAuth is the signature authorizing a private notification channel
// subscription for a given socket.
type ChannelAuth struct {
	Auth string `json:"auth"`
}
