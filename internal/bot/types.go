package bot

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/analytics"
	"studybot/internal/config"
	"studybot/internal/models"
	"studybot/internal/nav"
	"studybot/internal/registry"
	"studybot/internal/storage"
)

// Bot wraps the Telegram transport, the document store and the content
// registry behind the command/callback dispatch.
type Bot struct {
	api        *tgbotapi.BotAPI
	contentAPI *tgbotapi.BotAPI // delivery account; nil means the main bot delivers

	db        storage.Store
	registry  *registry.Registry
	analytics analytics.Sink
	cfg       *config.Config

	codec *nav.Codec
	menus *nav.Menus

	// userLocks serializes updates per user so rapid repeated taps cannot
	// interleave their user-record writes. Different users proceed
	// concurrently.
	userLocks   map[int64]*sync.Mutex
	userLocksMu sync.Mutex

	// batchCache is a timestamp-gated lookup cache for batch documents.
	// Entries go stale after batchCacheTTL; there is no eviction.
	batchCache   map[string]batchCacheEntry
	batchCacheMu sync.Mutex

	// pendingBroadcast remembers which admins started an interactive
	// /broadcast and are about to send the message text.
	pendingBroadcast   map[int64]bool
	pendingBroadcastMu sync.Mutex

	logger *zap.Logger
}

type batchCacheEntry struct {
	batch    *models.Batch
	cachedAt time.Time
}

const batchCacheTTL = 5 * time.Minute
