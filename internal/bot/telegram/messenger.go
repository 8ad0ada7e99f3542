// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/i474232898/climatenet-bot/internal/bot"
)

// Sender is the part of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Messenger delivers bot messages through the Bot API.
type Messenger struct {
	api Sender
}

// NewMessenger creates a Messenger. api is usually a *Listener, which sends
// through whatever connection is currently live.
func NewMessenger(api Sender) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) Send(ctx context.Context, chatID int64, msg bot.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Send(buildMessage(chatID, msg)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, photoURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))); err != nil {
		return fmt.Errorf("telegram: send photo: %w", err)
	}
	return nil
}

func buildMessage(chatID int64, msg bot.Message) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	if msg.Keyboard != nil {
		out.ReplyMarkup = buildMarkup(msg.Keyboard)
	}
	return out
}

func buildMarkup(k *bot.Keyboard) any {
	if k.Inline {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k.Rows))
		for _, r := range k.Rows {
			row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
			for _, b := range r {
				if b.URL != "" {
					row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				} else {
					row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Text))
				}
			}
			rows = append(rows, row)
		}
		return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(k.Rows))
	for _, r := range k.Rows {
		row := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.KeyboardButton{Text: b.Text, RequestLocation: b.RequestLocation})
		}
		rows = append(rows, row)
	}
	return tgbotapi.ReplyKeyboardMarkup{
		Keyboard:        rows,
		ResizeKeyboard:  true,
		OneTimeKeyboard: k.OneTime,
	}
}
