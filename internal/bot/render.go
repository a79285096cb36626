package bot

import (
	"fmt"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/dialogue"
)

// render applies one reply to the chat. prior is the message that carried
// the tapped button, or nil for replies to typed input.
func (b *Bot) render(chatID int64, prior *tgbotapi.Message, r dialogue.Reply) error {
	markup, err := keyboard(r.Buttons)
	if err != nil {
		return err
	}

	if prior == nil {
		return b.send(chatID, r, markup)
	}
	messageID := prior.MessageID

	switch r.Mode {
	case dialogue.ModeEdit:
		return b.edit(chatID, prior, r, markup)
	case dialogue.ModeReplace:
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
			// A message older than 48h cannot be deleted; the new one is sent
			// regardless.
			b.logger.Debug("Failed to delete message",
				zap.Int64("chat_id", chatID),
				zap.Int("message_id", messageID),
				zap.Error(err))
		}
	}
	return b.send(chatID, r, markup)
}

func (b *Bot) send(chatID int64, r dialogue.Reply, markup *tgbotapi.InlineKeyboardMarkup) error {
	var c tgbotapi.Chattable
	if r.Photo != "" {
		photo := tgbotapi.NewPhoto(chatID, fileRef(r.Photo))
		photo.Caption = r.Text
		photo.ParseMode = parseMode(r)
		if markup != nil {
			photo.ReplyMarkup = markup
		}
		c = photo
	} else {
		msg := tgbotapi.NewMessage(chatID, r.Text)
		msg.ParseMode = parseMode(r)
		if markup != nil {
			msg.ReplyMarkup = markup
		}
		c = msg
	}

	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (b *Bot) edit(chatID int64, prior *tgbotapi.Message, r dialogue.Reply, markup *tgbotapi.InlineKeyboardMarkup) error {
	messageID := prior.MessageID

	var c tgbotapi.Chattable
	if r.Photo != "" {
		media := tgbotapi.NewInputMediaPhoto(fileRef(r.Photo))
		media.Caption = r.Text
		media.ParseMode = parseMode(r)
		c = tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{
				ChatID:      chatID,
				MessageID:   messageID,
				ReplyMarkup: markup,
			},
			Media: media,
		}
	} else {
		msg := tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
		if r.Appended {
			// Telegram strips markup from the text it delivers, so the
			// original entities travel alongside the new text.
			msg.Entities = appendedEntities(prior, r.Text)
		} else {
			msg.ParseMode = parseMode(r)
		}
		msg.ReplyMarkup = markup
		c = msg
	}

	if _, err := b.api.Request(c); err != nil {
		if notModified(err) {
			return nil
		}
		return fmt.Errorf("edit: %w", err)
	}
	return nil
}

// keyboard encodes buttons into an inline keyboard, nil for no buttons.
func keyboard(rows [][]dialogue.Button) (*tgbotapi.InlineKeyboardMarkup, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			data, err := action.Encode(btn.Action)
			if err != nil {
				return nil, fmt.Errorf("button %q: %w", btn.Text, err)
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, data))
		}
		kb = append(kb, buttons)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup, nil
}

// appendedEntities keeps the prior message's entities and sets whatever text
// follows the prior text in bold. Offsets count UTF-16 code units.
func appendedEntities(prior *tgbotapi.Message, text string) []tgbotapi.MessageEntity {
	entities := append([]tgbotapi.MessageEntity(nil), prior.Entities...)
	if !strings.HasPrefix(text, prior.Text) {
		return entities
	}

	suffix := strings.TrimLeft(strings.TrimPrefix(text, prior.Text), "\n")
	if suffix == "" {
		return entities
	}
	return append(entities, tgbotapi.MessageEntity{
		Type:   "bold",
		Offset: utf16Len(text) - utf16Len(suffix),
		Length: utf16Len(suffix),
	})
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func fileRef(photo string) tgbotapi.RequestFileData {
	if strings.HasPrefix(photo, "http://") || strings.HasPrefix(photo, "https://") {
		return tgbotapi.FileURL(photo)
	}
	return tgbotapi.FileID(photo)
}

func parseMode(r dialogue.Reply) string {
	if r.HTML {
		return tgbotapi.ModeHTML
	}
	return ""
}

// Telegram rejects an edit that changes nothing, e.g. a double tap.
func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
