// Package notify subscribes chats to their organization's private push
// channel and relays deposit events into the conversation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"payoutbot/core/logger"
	"payoutbot/core/metrics"
	"payoutbot/core/telegram/format"
)

// depositEvent matches the payload published on the org channel.
type depositEvent struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Network  string `json:"network"`
}

// ChannelAuthorizer signs private channel subscriptions. Implemented by the
// payout API client.
type ChannelAuthorizer interface {
	AuthorizePushChannel(ctx context.Context, token, socketID, channel string) (authSignature string, err error)
}

// Sender delivers a MarkdownV2-formatted message to a chat.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// connection is what a subscription needs from the transport. Satisfied by
// *Conn; tests substitute a fake.
type connection interface {
	SocketID() string
	Subscribe(channel, auth string) error
	Next() (*Event, error)
	Ping() error
	Close() error
}

// Config holds push service credentials.
type Config struct {
	Key     string
	Cluster string
}

// Bridge owns every chat's push subscription.
type Bridge struct {
	cfg      Config
	auth     ChannelAuthorizer
	sender   Sender
	registry *Registry

	dial func(ctx context.Context) (connection, error)
	wg   sync.WaitGroup
}

// NewBridge constructs a Bridge using the real websocket transport.
func NewBridge(cfg Config, auth ChannelAuthorizer, sender Sender) *Bridge {
	b := &Bridge{
		cfg:      cfg,
		auth:     auth,
		sender:   sender,
		registry: NewRegistry(),
	}
	b.dial = func(ctx context.Context) (connection, error) {
		return DialPusher(ctx, cfg.Key, cfg.Cluster)
	}
	return b
}

// Enabled reports whether push credentials are configured.
func (b *Bridge) Enabled() bool {
	return b.cfg.Key != "" && b.cfg.Cluster != ""
}

// Subscribe connects the chat to its organization's private channel. Any
// previous subscription for the chat is torn down first.
func (b *Bridge) Subscribe(ctx context.Context, token, orgID string, chatID int64) error {
	if !b.Enabled() {
		return nil
	}
	channel := "private-org-" + orgID

	// The old subscription must be gone before the new connection comes up,
	// otherwise both pumps deliver deposits until the handshake finishes.
	b.registry.Remove(chatID)

	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}

	sig, err := b.auth.AuthorizePushChannel(ctx, token, conn.SocketID(), channel)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("notify: authorize %s: %w", channel, err)
	}
	if err := conn.Subscribe(channel, sig); err != nil {
		_ = conn.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.registry.Replace(chatID, func() {
		cancel()
		_ = conn.Close()
	})

	logger.LogEvent(ctx, logger.PUSH, slog.LevelInfo, "push.subscribed",
		slog.String("status", "ok"),
		slog.String("channel", channel),
		slog.Int64("chat_id", chatID),
	)

	b.wg.Add(1)
	go b.pump(runCtx, conn, channel, chatID)
	return nil
}

// Unsubscribe tears down the chat's subscription, if any.
func (b *Bridge) Unsubscribe(chatID int64) {
	b.registry.Remove(chatID)
}

// Close tears down every subscription and waits for the readers to stop.
func (b *Bridge) Close() {
	b.registry.Close()
	b.wg.Wait()
}

func (b *Bridge) pump(ctx context.Context, conn connection, channel string, chatID int64) {
	defer b.wg.Done()

	go keepalive(ctx, conn)

	for {
		ev, err := conn.Next()
		if err != nil {
			if ctx.Err() == nil {
				logger.LogEvent(ctx, logger.PUSH, slog.LevelWarn, "push.closed",
					slog.String("status", "fail"),
					slog.String("channel", channel),
					slog.Int64("chat_id", chatID),
					slog.String("error", err.Error()),
				)
				b.registry.Drop(chatID)
				_ = conn.Close()
			}
			return
		}

		if ev.Name != "deposit" {
			continue
		}
		var dep depositEvent
		if err := json.Unmarshal(ev.Data, &dep); err != nil {
			logger.LogEvent(ctx, logger.PUSH, slog.LevelWarn, "push.event",
				slog.String("status", "fail"),
				slog.String("channel", channel),
				slog.String("error", "malformed deposit payload"),
			)
			continue
		}

		metrics.DepositEvents.Inc()
		if err := b.sender.SendMessage(chatID, formatDeposit(dep)); err != nil {
			logger.LogEvent(ctx, logger.PUSH, slog.LevelWarn, "push.deliver",
				slog.String("status", "fail"),
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// keepalive pings the connection on an interval so intermediaries don't cut
// an otherwise quiet channel. A failed ping is left to the reader: the next
// Next() call surfaces the broken connection.
func keepalive(ctx context.Context, conn connection) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

func formatDeposit(dep depositEvent) string {
	currency := dep.Currency
	if currency == "" {
		currency = "USDC"
	}
	network := dep.Network
	if network == "" {
		network = "your wallet network"
	}
	return fmt.Sprintf("*💰 New Deposit Received*\n\n%s %s deposited on %s",
		format.EscapeMarkdownV2(dep.Amount),
		format.EscapeMarkdownV2(currency),
		format.EscapeMarkdownV2(network))
}
