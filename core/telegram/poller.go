package telegram

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "payoutbot/core/config"
)

// buildPoller maps the normalized telegram/webhook config onto a telebot
// poller. Normalize has already canonicalized run_mode and defaulted the
// long-poll timeout, so no fallback logic lives here.
func buildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second}
}
