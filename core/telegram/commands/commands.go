package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// RequiresAuth marks commands that need a valid, unexpired platform login.
	RequiresAuth bool
	Hidden       bool
	Aliases      []string
}
