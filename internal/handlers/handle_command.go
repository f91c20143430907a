package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (bh *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	command := update.Message.Text
	if i := strings.IndexAny(command, " @"); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/start":
		user := update.Message.From
		err := bh.engine.HandleStart(ctx, user.ID, update.Message.Chat.ID, user.Username, user.FirstName)
		logHandlerError("Start command", user.ID, err)
	}
}
