package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start starts the bot in polling mode
func (b *Bot) Start() error {
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	for update := range updates {
		b.HandleUpdate(update)
	}
	return nil
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + "/telegram-webhook")
	if err != nil {
		return err
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.logger.Info("Bot configured for webhook mode")
	return nil
}

// HandleUpdate dispatches one update. Each user's updates run serialized
// behind a per-user lock; updates from different users proceed concurrently.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	var userID int64
	switch {
	case update.Message != nil && update.Message.From != nil:
		userID = update.Message.From.ID
	case update.CallbackQuery != nil:
		userID = update.CallbackQuery.From.ID
	default:
		return
	}

	go func() {
		lock := b.userLock(userID)
		lock.Lock()
		defer lock.Unlock()
		b.dispatch(userID, update)
	}()
}

// HandleUpdateSync processes an update on the calling goroutine. Used by
// tests and the webhook handler, which already runs per-request goroutines.
func (b *Bot) HandleUpdateSync(update tgbotapi.Update) {
	var userID int64
	switch {
	case update.Message != nil && update.Message.From != nil:
		userID = update.Message.From.ID
	case update.CallbackQuery != nil:
		userID = update.CallbackQuery.From.ID
	default:
		return
	}

	lock := b.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	b.dispatch(userID, update)
}

func (b *Bot) dispatch(userID int64, update tgbotapi.Update) {
	if b.isBanned(userID) {
		b.logger.Info("Dropped update from banned user", zap.Int64("user_id", userID))
		return
	}

	if update.Message != nil {
		b.handleMessage(update.Message)
	}
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

// isBanned checks the persisted ban flag. Admins can never ban themselves
// out of the bot.
func (b *Bot) isBanned(userID int64) bool {
	if b.cfg.IsAdmin(userID) {
		return false
	}
	user, err := b.db.GetUser(context.Background(), userID)
	if err != nil {
		b.logger.Error("Failed to load user for ban check", zap.Error(err), zap.Int64("user_id", userID))
		return false
	}
	return user != nil && user.IsBanned
}
