// Package bot implements the narrow chat transport surface spec.md §6
// requires ("send message", "edit message", "delete message", "set reply
// markup", "register callback/text handlers") over
// go-telegram-bot-api/telegram-bot-api/v5, plus the permission/navigation/
// cooldown middleware chain every handler runs behind.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vostok-rest/backoffice/common"
)

// TextHandler processes a reply-keyboard message.
type TextHandler func(ctx context.Context, userID string, chatID int64, text string) error

// CallbackHandler processes an inline-keyboard callback.
type CallbackHandler func(ctx context.Context, userID string, chatID int64, messageID int, data string) error

// Telegram wraps the bot API client behind the send/edit/delete/markup
// surface the rest of this service depends on; nothing outside this
// package imports tgbotapi directly.
type Telegram struct {
	api *tgbotapi.BotAPI

	textHandlers     map[string]TextHandler
	callbackHandlers map[string]CallbackHandler
}

// NewTelegram builds a Telegram transport from a bot token.
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to start telegram bot: %w", err)
	}
	return &Telegram{
		api:              api,
		textHandlers:     make(map[string]TextHandler),
		callbackHandlers: make(map[string]CallbackHandler),
	}, nil
}

// OnText registers a handler for an exact reply-button text.
func (t *Telegram) OnText(buttonText string, h TextHandler) {
	t.textHandlers[buttonText] = h
}

// OnCallbackPrefix registers a handler for inline callbacks whose data
// starts with prefix.
func (t *Telegram) OnCallbackPrefix(prefix string, h CallbackHandler) {
	t.callbackHandlers[prefix] = h
}

// Send posts a new message with an optional reply markup.
func (t *Telegram) Send(chatID int64, text string, markup interface{}) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if rm, ok := markup.(tgbotapi.InlineKeyboardMarkup); ok {
		msg.ReplyMarkup = rm
	} else if rm, ok := markup.(tgbotapi.ReplyKeyboardMarkup); ok {
		msg.ReplyMarkup = rm
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text (and markup, if given) of an existing message —
// the single-window UX invariant every inline workflow handler relies on.
func (t *Telegram) Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markup != nil {
		edit.ReplyMarkup = markup
	}
	_, err := t.api.Send(edit)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// EditText replaces a message's text without touching its markup — used
// by notifiers (stop-list, stock alerts) that only ever render plain text.
func (t *Telegram) EditText(chatID int64, messageID int, text string) error {
	return t.Edit(chatID, messageID, text, nil)
}

// Delete removes a message — used to clear tracked menu/prompt messages
// and to delete consumed user text input.
func (t *Telegram) Delete(chatID int64, messageID int) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// AckCallback acknowledges an inline callback — "callback acknowledgement
// is the first action" per spec.md §4.6, removing the client-side spinner
// immediately regardless of how long the handler takes afterward.
func (t *Telegram) AckCallback(callbackID string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, ""))
	if err != nil {
		return fmt.Errorf("failed to ack callback: %w", err)
	}
	return nil
}

// Run starts the long-poll update loop, dispatching each update to a
// goroutine so handlers never block sibling conversations — per-user
// serialisation is enforced separately by fsm.Manager.Lock, not by this loop.
func (t *Telegram) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			go t.dispatch(ctx, update)
		}
	}
}

func (t *Telegram) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger.WithFields(map[string]interface{}{"panic": fmt.Sprintf("%v", r)}).Error("bot handler panicked")
		}
	}()

	if update.Message != nil {
		userID := fmt.Sprintf("%d", update.Message.From.ID)
		if h, ok := t.textHandlers[update.Message.Text]; ok {
			if err := h(ctx, userID, update.Message.Chat.ID, update.Message.Text); err != nil {
				common.Logger.WithFields(common.ErrorFields(err, "bot_text_handler")).Error("text handler failed")
			}
		}
		return
	}

	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		userID := fmt.Sprintf("%d", cb.From.ID)
		if err := t.AckCallback(cb.ID); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, "bot_callback_ack")).Error("callback ack failed")
		}
		for prefix, h := range t.callbackHandlers {
			if len(cb.Data) >= len(prefix) && cb.Data[:len(prefix)] == prefix {
				if err := h(ctx, userID, cb.Message.Chat.ID, cb.Message.MessageID, cb.Data); err != nil {
					common.Logger.WithFields(common.ErrorFields(err, "bot_callback_handler")).Error("callback handler failed")
				}
				return
			}
		}
	}
}
