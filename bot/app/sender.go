package app

import (
	"context"
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v4"

	"payoutbot/bot/copperx"
)

// botSender delivers notification messages through the bot. The bot instance
// only exists once the Telegram runtime is up, so it is bound late.
type botSender struct {
	mu  sync.RWMutex
	bot *tele.Bot
}

func (s *botSender) bind(bot *tele.Bot) {
	s.mu.Lock()
	s.bot = bot
	s.mu.Unlock()
}

func (s *botSender) SendMessage(chatID int64, text string) error {
	s.mu.RLock()
	bot := s.bot
	s.mu.RUnlock()

	if bot == nil {
		return fmt.Errorf("app: bot not started yet")
	}
	_, err := bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2})
	return err
}

// channelAuth adapts the API client to the notification bridge's authorizer.
type channelAuth struct {
	api *copperx.Client
}

func (a channelAuth) AuthorizePushChannel(ctx context.Context, token, socketID, channel string) (string, error) {
	res, err := a.api.AuthorizePushChannel(ctx, token, socketID, channel)
	if err != nil {
		return "", err
	}
	return res.Auth, nil
}
