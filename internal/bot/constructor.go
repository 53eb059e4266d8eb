package bot

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/analytics"
	"studybot/internal/config"
	"studybot/internal/nav"
	"studybot/internal/registry"
	"studybot/internal/storage"
)

// NewBot creates a new Telegram bot. When cfg.ContentBotToken is set, a
// second API client is created for file delivery so the main chat history
// stays clean.
func NewBot(cfg *config.Config, db storage.Store, reg *registry.Registry, sink analytics.Sink, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	var contentAPI *tgbotapi.BotAPI
	if cfg.ContentBotToken != "" {
		contentAPI, err = tgbotapi.NewBotAPI(cfg.ContentBotToken)
		if err != nil {
			logger.Error("Failed to create content bot API", zap.Error(err))
			return nil, fmt.Errorf("failed to create content bot: %w", err)
		}
		logger.Info("Content delivery bot created", zap.String("bot_username", contentAPI.Self.UserName))
	}

	codec := nav.NewCodec()

	return &Bot{
		api:              api,
		contentAPI:       contentAPI,
		db:               db,
		registry:         reg,
		analytics:        sink,
		cfg:              cfg,
		codec:            codec,
		menus:            nav.NewMenus(codec, cfg.ChapterCount, cfg.LectureCount),
		userLocks:        make(map[int64]*sync.Mutex),
		batchCache:       make(map[string]batchCacheEntry),
		pendingBroadcast: make(map[int64]bool),
		logger:           logger,
	}, nil
}

// GetAPI returns the bot API for testing
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}
