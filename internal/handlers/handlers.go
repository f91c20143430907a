package handlers

import (
	"context"
	"log"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/rocketwin/funnel-bot/internal/contextkeys"
	"github.com/rocketwin/funnel-bot/internal/engine"
	"github.com/rocketwin/funnel-bot/internal/i18n"
	"github.com/rocketwin/funnel-bot/types"
)

type Handlers struct {
	engine *engine.Engine
	store  types.UserStore
}

func NewHandlers(eng *engine.Engine, store types.UserStore) *Handlers {
	return &Handlers{
		engine: eng,
		store:  store,
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	messageType, ok := contextkeys.GetMessageType(ctx)
	if !ok {
		return
	}

	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, b, update)
	case contextkeys.MessageTypeText:
		bh.HandleText(ctx, update)
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, b, update)
	}
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

func (bh *Handlers) userLanguage(ctx context.Context, userID int64) i18n.Lang {
	u, err := bh.store.GetUser(ctx, userID)
	if err != nil {
		return i18n.EN
	}
	return u.LanguageCode
}

func logHandlerError(what string, userID int64, err error) {
	if err != nil {
		log.Printf("%s for user %d failed: %v", what, userID, err)
	}
}
