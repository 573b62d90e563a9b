// Package copperx is the HTTP client for the Copperx payout API: email-OTP
// auth, wallets, transfers, bank withdrawals and notification channel auth.
package copperx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"payoutbot/core/logger"
	"payoutbot/core/metrics"
)

// Config holds the API client settings.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client talks to the payout API. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client from config.
func New(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// doJSON performs one API call: marshals the optional request body, attaches
// the bearer token when present, and decodes a 2xx response into out.
// Non-2xx responses come back as *APIError.
func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("copperx: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("copperx: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	endpoint := metricName(method, path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		logger.LogEvent(ctx, logger.API, slog.LevelWarn, "api.request",
			slog.String("status", "fail"),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			slog.Duration("took", logger.Took(start)),
		)
		return fmt.Errorf("copperx: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "read_error").Inc()
		return fmt.Errorf("copperx: read %s %s: %w", method, path, err)
	}

	metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.APIRequests.WithLabelValues(endpoint, "api_error").Inc()
		apiErr := newAPIError(resp.StatusCode, raw)
		logger.LogEvent(ctx, logger.API, slog.LevelWarn, "api.request",
			slog.String("status", "fail"),
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", apiErr.Message),
			slog.Duration("took", logger.Took(start)),
		)
		return apiErr
	}

	metrics.APIRequests.WithLabelValues(endpoint, "ok").Inc()
	logger.LogEvent(ctx, logger.API, slog.LevelDebug, "api.request",
		slog.String("status", "ok"),
		slog.String("endpoint", endpoint),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration("took", logger.Took(start)),
	)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("copperx: decode %s %s: %w", method, path, err)
	}
	return nil
}

func metricName(method, path string) string {
	// Strip the query so pagination does not explode label cardinality.
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return method + " " + path
}

// RequestEmailOTP starts an email login and returns the SID binding the OTP
// to this request.
func (c *Client) RequestEmailOTP(ctx context.Context, email string) (*OTPRequest, error) {
	in := map[string]string{"email": email}
	var out OTPRequest
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/email-otp/request", "", in, &out); err != nil {
		return nil, err
	}
	if out.Email == "" {
		out.Email = email
	}
	return &out, nil
}

// AuthenticateOTP completes an email login with the code the user received.
func (c *Client) AuthenticateOTP(ctx context.Context, email, otp, sid string) (*AuthResult, error) {
	in := map[string]string{"email": email, "otp": otp, "sid": sid}
	var out AuthResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/email-otp/authenticate", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// KYCStatus returns the account's verification status, or "not_started" when
// no KYC record exists yet.
func (c *Client) KYCStatus(ctx context.Context, token string) (string, error) {
	var out struct {
		Data []KYCResult `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/kycs", token, nil, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 {
		return "not_started", nil
	}
	return out.Data[0].Status, nil
}

// WalletBalances lists all wallets with their asset balances.
func (c *Client) WalletBalances(ctx context.Context, token string) ([]Wallet, error) {
	var out []Wallet
	if err := c.doJSON(ctx, http.MethodGet, "/api/wallets/balances", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DefaultWallet returns the wallet used for outgoing transfers.
func (c *Client) DefaultWallet(ctx context.Context, token string) (*Wallet, error) {
	var out Wallet
	if err := c.doJSON(ctx, http.MethodGet, "/api/wallets/default", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetDefaultWallet changes which wallet outgoing transfers draw from.
func (c *Client) SetDefaultWallet(ctx context.Context, token, walletID string) (*Wallet, error) {
	in := map[string]string{"walletId": walletID}
	var out Wallet
	if err := c.doJSON(ctx, http.MethodPost, "/api/wallets/default", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendToEmail transfers funds to another account identified by email.
func (c *Client) SendToEmail(ctx context.Context, token string, req EmailTransferRequest) (*Transfer, error) {
	var out Transfer
	if err := c.doJSON(ctx, http.MethodPost, "/api/transfers/send", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendToWallet transfers funds to an external wallet address.
func (c *Client) SendToWallet(ctx context.Context, token string, req WalletTransferRequest) (*Transfer, error) {
	var out Transfer
	if err := c.doJSON(ctx, http.MethodPost, "/api/transfers/wallet-withdraw", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentTransfers returns one page of the transfer history.
func (c *Client) RecentTransfers(ctx context.Context, token string, page, limit int) (*TransferPage, error) {
	path := fmt.Sprintf("/api/transfers?page=%d&limit=%d", page, limit)
	var out TransferPage
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WithdrawalQuote requests an offramp quote for a bank withdrawal.
func (c *Client) WithdrawalQuote(ctx context.Context, token string, req QuoteRequest) (*Quote, error) {
	var out Quote
	if err := c.doJSON(ctx, http.MethodPost, "/api/quotes/offramp", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitWithdrawal submits a previously-quoted bank withdrawal.
func (c *Client) SubmitWithdrawal(ctx context.Context, token string, req WithdrawalRequest) (*Transfer, error) {
	var out Transfer
	if err := c.doJSON(ctx, http.MethodPost, "/api/transfers/offramp", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthorizePushChannel signs a private notification channel subscription for
// the given socket.
func (c *Client) AuthorizePushChannel(ctx context.Context, token, socketID, channel string) (*ChannelAuth, error) {
	in := map[string]string{"socket_id": socketID, "channel_name": channel}
	var out ChannelAuth
	if err := c.doJSON(ctx, http.MethodPost, "/api/notifications/auth", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
