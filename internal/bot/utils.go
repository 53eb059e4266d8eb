package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/nav"
)

// sendMessage sends through the main bot, tolerating a nil API for tests.
func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

// deliveryAPI returns the account files are sent through.
func (b *Bot) deliveryAPI() *tgbotapi.BotAPI {
	if b.contentAPI != nil {
		return b.contentAPI
	}
	return b.api
}

// answerCallback clears the loading spinner on a pressed button, optionally
// showing a short toast.
func (b *Bot) answerCallback(queryID, text string) {
	if b.api == nil {
		return // For testing
	}
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
}

// sendMenu renders a nav menu as a message with an inline keyboard.
func (b *Bot) sendMenu(chatID int64, menu nav.Menu) {
	msg := tgbotapi.NewMessage(chatID, menu.Text)
	msg.ReplyMarkup = keyboardFor(menu)
	b.sendMessage(msg)
}

// editMenu swaps an existing menu message in place, the usual flow when a
// button press moves the user one screen deeper.
func (b *Bot) editMenu(chatID int64, messageID int, menu nav.Menu) {
	if b.api == nil {
		return // For testing
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, menu.Text, keyboardFor(menu))
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("Failed to edit menu message", zap.Error(err))
		// Telegram rejects edits on old messages; fall back to a fresh one.
		b.sendMenu(chatID, menu)
	}
}

func keyboardFor(menu nav.Menu) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range menu.Rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// userLock returns the mutex serializing one user's updates.
func (b *Bot) userLock(userID int64) *sync.Mutex {
	b.userLocksMu.Lock()
	defer b.userLocksMu.Unlock()

	lock, ok := b.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		b.userLocks[userID] = lock
	}
	return lock
}

func strPtr(s string) *string {
	return &s
}
