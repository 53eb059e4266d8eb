package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// broadcastDelay spaces sends to stay under Telegram's ~30 msg/s bot limit
// with margin.
const broadcastDelay = 50 * time.Millisecond

// handleBroadcast sends the argument text to every known user. Called with
// no argument, it arms the next plain message from this admin as the
// broadcast body instead.
func (b *Bot) handleBroadcast(ctx context.Context, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		b.pendingBroadcastMu.Lock()
		b.pendingBroadcast[message.From.ID] = true
		b.pendingBroadcastMu.Unlock()
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
			"Send the broadcast text as your next message."))
		return
	}
	b.runBroadcast(ctx, message.Chat.ID, text)
}

// takePendingBroadcast consumes the armed-broadcast flag for a user.
func (b *Bot) takePendingBroadcast(userID int64) bool {
	b.pendingBroadcastMu.Lock()
	defer b.pendingBroadcastMu.Unlock()
	if !b.pendingBroadcast[userID] {
		return false
	}
	delete(b.pendingBroadcast, userID)
	return true
}

// runBroadcast fans the text out to every known user, pacing sends and
// backing off on flood-control errors.
func (b *Bot) runBroadcast(ctx context.Context, reportChatID int64, text string) {
	userIDs, err := b.db.ListUserIDs(ctx)
	if err != nil {
		b.logger.Error("Failed to list users for broadcast", zap.Error(err))
		b.sendMessage(tgbotapi.NewMessage(reportChatID, "Could not load the user list."))
		return
	}

	var sent, failed int
	for _, userID := range userIDs {
		if b.broadcastTo(userID, text) {
			sent++
		} else {
			failed++
		}
		time.Sleep(broadcastDelay)
	}

	b.logger.Info("Broadcast finished",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("total", len(userIDs)),
	)
	b.sendMessage(tgbotapi.NewMessage(reportChatID,
		fmt.Sprintf("📢 Broadcast delivered to %d of %d users.", sent, len(userIDs))))
}

// broadcastTo sends one broadcast message, retrying once after the wait
// Telegram asks for when it throttles us.
func (b *Bot) broadcastTo(userID int64, text string) bool {
	if b.api == nil {
		return true
	}

	msg := tgbotapi.NewMessage(userID, text)
	_, err := b.api.Send(msg)
	if err == nil {
		return true
	}

	if tgErr, ok := err.(*tgbotapi.Error); ok && tgErr.RetryAfter > 0 {
		time.Sleep(time.Duration(tgErr.RetryAfter) * time.Second)
		if _, err = b.api.Send(msg); err == nil {
			return true
		}
	}

	// Blocked bots and deactivated accounts land here. Expected churn.
	b.logger.Debug("Broadcast send failed", zap.Error(err), zap.Int64("user_id", userID))
	return false
}
