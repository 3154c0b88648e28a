package tgbot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"festival-bot/internal/models"
)

// Transport is the chat platform collaborator. Message sends and edits are
// side effects outside any transaction boundary; a failed render is not
// rolled back, the next interaction re-renders.
type Transport interface {
	SendText(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error)
	SendPhoto(chatID int64, photo []byte, caption string, kb *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditText(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error
	DeleteMessage(chatID int64, messageID int) error
	AckCallback(callbackID string) error
}

type telegramTransport struct {
	bot *tgbotapi.BotAPI
}

func newTelegramTransport(bot *tgbotapi.BotAPI) *telegramTransport {
	return &telegramTransport{bot: bot}
}

func (t *telegramTransport) SendText(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}
	return sent.MessageID, nil
}

func (t *telegramTransport) SendPhoto(chatID int64, photo []byte, caption string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "photo.jpeg", Bytes: photo})
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}
	return sent.MessageID, nil
}

func (t *telegramTransport) EditText(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := t.bot.Send(msg); err != nil {
		// Telegram rejects edits that leave the message unchanged; that is
		// a no-op for us.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}
	return nil
}

func (t *telegramTransport) DeleteMessage(chatID int64, messageID int) error {
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}
	return nil
}

func (t *telegramTransport) AckCallback(callbackID string) error {
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}
	return nil
}
