package helpers

import (
	tele "gopkg.in/telebot.v4"
)

// Replies are sent synchronously: each update must be fully handled,
// including the session write-back, before the next update for the same
// conversation is processed, so queueing outbound sends would reorder
// prompts against session state.

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	if len(opts) > 0 && opts[0] != nil {
		return c.Send(text, opts[0])
	}
	return c.Send(text)
}

// EditOrSend tries to edit the message (no parse mode) or sends a new one if
// edit fails.
func EditOrSend(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	if len(markup) > 0 && markup[0] != nil {
		return c.EditOrSend(text, &tele.SendOptions{ReplyMarkup: markup[0]})
	}
	return c.EditOrSend(text)
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm})
}

// EditOrSendMD tries to edit the message (Markdown) or sends a new one if edit fails.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return c.EditOrSend(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm})
}
