package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"
)

func (bh *Handlers) HandleText(ctx context.Context, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}

	userID := update.Message.From.ID
	err := bh.engine.HandleMessage(ctx, userID, update.Message.Chat.ID, update.Message.Text)
	logHandlerError("Message", userID, err)
}
