package sender

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/rocketwin/funnel-bot/internal/i18n"
	"github.com/rocketwin/funnel-bot/internal/messages"
	"github.com/rocketwin/funnel-bot/types"
)

const (
	registrationPhotoOne = "https://picsum.photos/seed/register/600/400"
	registrationPhotoTwo = "https://picsum.photos/seed/recharge/600/400"
)

// TelegramSender is the outbound channel. Conversation replies are
// mirrored into the chat log; broadcast pushes are not.
type TelegramSender struct {
	bot   *bot.Bot
	store types.UserStore
}

func New(b *bot.Bot, store types.UserStore) *TelegramSender {
	return &TelegramSender{bot: b, store: store}
}

// Reply sends a conversation message and appends it to the chat log.
func (s *TelegramSender) Reply(ctx context.Context, userID, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	if err := s.store.AppendChatMessage(ctx, userID, types.RoleBot, text); err != nil {
		log.Printf("Failed to log bot reply for user %d: %v", userID, err)
	}
	return nil
}

// Push sends a broadcast message without touching the chat log. A
// recipient who blocked the bot surfaces as types.ErrBlocked.
func (s *TelegramSender) Push(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		if errors.Is(err, bot.ErrorForbidden) {
			return types.ErrBlocked
		}
		return err
	}
	return nil
}

// SendServiceOffer delivers the game link plus the strategy menu.
func (s *TelegramSender) SendServiceOffer(ctx context.Context, userID, chatID int64, lang i18n.Lang) error {
	linkText := messages.ServiceLink(lang)
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      linkText,
		ParseMode: messages.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("send service link: %w", err)
	}
	if err := s.store.AppendChatMessage(ctx, userID, types.RoleBot, linkText); err != nil {
		log.Printf("Failed to log service link for user %d: %v", userID, err)
	}

	strategyText := messages.StrategyPrompt(lang)
	_, err = s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   strategyText,
		ReplyMarkup: models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Strategy 1", CallbackData: "strategy_1"}},
				{{Text: "Strategy 2", CallbackData: "strategy_2"}},
				{{Text: "Strategy 3 (unavailable)", CallbackData: "disabled_button"}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send strategy menu: %w", err)
	}
	if err := s.store.AppendChatMessage(ctx, userID, types.RoleBot, strategyText); err != nil {
		log.Printf("Failed to log strategy prompt for user %d: %v", userID, err)
	}
	return nil
}

// SendRegistrationTutorial delivers the two-step photo guide and the
// trailing nudge.
func (s *TelegramSender) SendRegistrationTutorial(ctx context.Context, userID, chatID int64, lang i18n.Lang) error {
	steps := []struct {
		photo   string
		caption string
	}{
		{registrationPhotoOne, messages.RegistrationStepOne(lang)},
		{registrationPhotoTwo, messages.RegistrationStepTwo(lang)},
	}
	for _, step := range steps {
		_, err := s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:    chatID,
			Photo:     &models.InputFileString{Data: step.photo},
			Caption:   step.caption,
			ParseMode: messages.ParseModeMarkdown,
		})
		if err != nil {
			return fmt.Errorf("send tutorial photo: %w", err)
		}
		logged := "[Photo] " + step.caption
		if err := s.store.AppendChatMessage(ctx, userID, types.RoleBot, logged); err != nil {
			log.Printf("Failed to log tutorial step for user %d: %v", userID, err)
		}
	}

	return s.Reply(ctx, userID, chatID, messages.RegistrationFollowUp(lang))
}
