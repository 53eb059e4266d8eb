package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	TelegramToken   string
	ContentBotToken string // optional delivery account; empty means the main bot delivers
	AdminIDs        []int64

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// MongoDB configuration
	MongoURI      string
	MongoDatabase string

	// Secondary (overflow) store, active only when DualStore is set
	DualStore              bool
	SecondaryMongoURI      string
	SecondaryMongoDatabase string

	// Menu and content defaults
	DefaultSubjects []string
	DefaultTeachers []string
	ChapterCount    int
	LectureCount    int
	MaxFileSizeMB   int64

	// ClickHouse analytics sink
	AnalyticsEnabled   bool
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Content delivery bot token (optional)
	config.ContentBotToken = os.Getenv("CONTENT_BOT_TOKEN")

	// Admin IDs (required)
	adminIDsStr := os.Getenv("ADMIN_IDS")
	if adminIDsStr == "" {
		return nil, fmt.Errorf("ADMIN_IDS is required (comma-separated list of Telegram user IDs)")
	}

	idStrs := strings.Split(adminIDsStr, ",")
	for _, idStr := range idStrs {
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID in ADMIN_IDS: %s", idStr)
		}
		config.AdminIDs = append(config.AdminIDs, id)
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// MongoDB configuration (required if not using mock)
	if !config.UseMockDB {
		config.MongoURI = os.Getenv("MONGO_URI")
		if config.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required when USE_MOCK_DB is not set")
		}

		config.MongoDatabase = os.Getenv("MONGO_DATABASE")
		if config.MongoDatabase == "" {
			config.MongoDatabase = "studybot"
		}

		config.DualStore = os.Getenv("DUAL_STORE") == "true"
		if config.DualStore {
			config.SecondaryMongoURI = os.Getenv("SECONDARY_MONGO_URI")
			if config.SecondaryMongoURI == "" {
				return nil, fmt.Errorf("SECONDARY_MONGO_URI is required when DUAL_STORE is true")
			}
			config.SecondaryMongoDatabase = os.Getenv("SECONDARY_MONGO_DATABASE")
			if config.SecondaryMongoDatabase == "" {
				config.SecondaryMongoDatabase = config.MongoDatabase
			}
		}
	}

	// Menu defaults
	config.DefaultSubjects = splitList(os.Getenv("DEFAULT_SUBJECTS"),
		[]string{"Physics", "Chemistry", "Biology"})
	config.DefaultTeachers = splitList(os.Getenv("DEFAULT_TEACHERS"),
		[]string{"Mr Sir", "Saleem Sir", "Alakh Sir"})

	var err error
	config.ChapterCount, err = intEnv("CHAPTER_COUNT", 20)
	if err != nil {
		return nil, err
	}
	config.LectureCount, err = intEnv("LECTURE_COUNT", 15)
	if err != nil {
		return nil, err
	}

	maxSize, err := intEnv("MAX_FILE_SIZE_MB", 2000)
	if err != nil {
		return nil, err
	}
	config.MaxFileSizeMB = int64(maxSize)

	// ClickHouse analytics (optional)
	config.AnalyticsEnabled = os.Getenv("ANALYTICS_ENABLED") == "true"
	if config.AnalyticsEnabled {
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when ANALYTICS_ENABLED is true")
		}

		config.ClickHousePort, err = intEnv("CLICKHOUSE_PORT", 9000)
		if err != nil {
			return nil, err
		}

		config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	}

	return config, nil
}

// IsAdmin reports whether the user id is in the configured admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func splitList(value string, defaults []string) []string {
	if value == "" {
		return defaults
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return defaults
	}
	return items
}

func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
