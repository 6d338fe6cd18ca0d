// Package notify mirrors staff alerts to a Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// ErrNotConfigured is returned when no Telegram chat is set up.
var ErrNotConfigured = errors.New("telegram alerts are not configured")

// Telegram sends plain-text alerts to one chat.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegram creates a sender. apiURL may be empty for the public API.
// The bot is created offline, so no request is made until the first alert.
func NewTelegram(token string, chatID int64, apiURL string) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, ErrNotConfigured
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// Alert sends text to the staff chat.
func (t *Telegram) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tele.ChatID(t.chatID), text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	log.Debug().Int64("chat_id", t.chatID).Msg("Staff alert mirrored to Telegram")
	return nil
}
