package middleware

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/rocketwin/funnel-bot/internal/contextkeys"
)

type Middlewares struct{}

func NewUpdateClassifier() *Middlewares {
	return &Middlewares{}
}

// ClassifyUpdateMiddleware tags the update with its kind and drops
// everything the funnel does not react to (photos, stickers, joins).
// Malformed or non-text payloads are ignored, not errors.
func (m *Middlewares) ClassifyUpdateMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		switch {
		case update.CallbackQuery != nil && update.CallbackQuery.Data != "":
			ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
			ctx = contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)

		case update.Message != nil && update.Message.From != nil && strings.HasPrefix(update.Message.Text, "/"):
			ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)

		case update.Message != nil && update.Message.From != nil && update.Message.Text != "":
			ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeText)

		default:
			return
		}

		next(ctx, b, update)
	}
}
