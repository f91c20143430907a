package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/rocketwin/funnel-bot/internal/contextkeys"
	"github.com/rocketwin/funnel-bot/internal/messages"
)

func (bh *Handlers) HandleClickButton(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	userID := update.CallbackQuery.From.ID
	chatID := getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
	if chatID == 0 {
		chatID = userID
	}

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}

	switch {
	case data == "confirm_service":
		// Acknowledge the tap first so the button stops spinning.
		_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
		if update.CallbackQuery.Message.Message != nil {
			_, _ = b.DeleteMessage(ctx, &bot.DeleteMessageParams{
				ChatID:    chatID,
				MessageID: update.CallbackQuery.Message.Message.ID,
			})
		}
		logHandlerError("Service confirmation", userID, bh.engine.ConfirmService(ctx, userID, chatID))

	case strings.HasPrefix(data, "strategy_"):
		_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
		if update.CallbackQuery.Message.Message != nil {
			lang := bh.userLanguage(ctx, userID)
			_, _ = b.EditMessageText(ctx, &bot.EditMessageTextParams{
				ChatID:    chatID,
				MessageID: update.CallbackQuery.Message.Message.ID,
				Text:      messages.StrategyChosen(lang, data),
			})
		}

	case data == "disabled_button":
		lang := bh.userLanguage(ctx, userID)
		_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
			Text:            messages.StrategyUnavailable(lang),
			ShowAlert:       true,
		})

	default:
		_, _ = b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}
