package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studybot/internal/analytics"
	"studybot/internal/analytics/ch"
	"studybot/internal/bot"
	"studybot/internal/config"
	"studybot/internal/registry"
	"studybot/internal/storage"
	"studybot/internal/storage/mongodb"
	"studybot/internal/storage/stubs"
)

// App wires the config, stores, registry, analytics sink, bot and HTTP
// server together and owns their lifecycle.
type App struct {
	config    *config.Config
	db        storage.Store
	secondary storage.ContentStore // nil unless dual-store mode is on
	analytics analytics.Sink
	bot       *bot.Bot
	server    *http.Server
	logger    *zap.Logger
}

// New creates and initializes a new application instance. Nothing here runs
// at import time; every component is constructed explicitly.
func New() (*App, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting Study Bot")

	if err := app.initStores(); err != nil {
		return nil, err
	}
	if err := app.initAnalytics(); err != nil {
		return nil, err
	}
	if err := app.initBot(); err != nil {
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

// initStores connects the primary document store and, in dual-store mode,
// the secondary overflow store.
func (a *App) initStores() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if a.config.UseMockDB {
		a.logger.Info("Using in-memory mock store")
		a.db = stubs.NewMockStore()
		return nil
	}

	a.logger.Info("Connecting to MongoDB",
		zap.String("database", a.config.MongoDatabase),
		zap.Bool("dual_store", a.config.DualStore),
	)
	primary, err := mongodb.NewMongoDB(ctx, a.config.MongoURI, a.config.MongoDatabase)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := primary.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	a.db = primary

	if a.config.DualStore {
		secondary, err := mongodb.NewMongoDB(ctx, a.config.SecondaryMongoURI, a.config.SecondaryMongoDatabase)
		if err != nil {
			return fmt.Errorf("failed to connect to secondary MongoDB: %w", err)
		}
		if err := secondary.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize secondary MongoDB: %w", err)
		}
		a.secondary = secondary
	}

	a.logger.Info("Stores initialized")
	return nil
}

// initAnalytics connects the ClickHouse delivery sink when enabled; the Nop
// sink keeps the bot fully functional without it.
func (a *App) initAnalytics() error {
	if !a.config.AnalyticsEnabled {
		a.analytics = analytics.Nop{}
		return nil
	}

	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", a.config.ClickHouseHost),
		zap.Int("port", a.config.ClickHousePort),
		zap.Bool("tls", a.config.ClickHouseUseTLS),
	)
	sink, err := ch.NewClickHouseSink(
		a.config.ClickHouseHost,
		a.config.ClickHousePort,
		a.config.ClickHouseDatabase,
		a.config.ClickHouseUser,
		a.config.ClickHousePassword,
		a.config.ClickHouseUseTLS,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	a.analytics = sink
	return nil
}

// initBot assembles the registry and the Telegram bot.
func (a *App) initBot() error {
	reg := registry.New(a.db, a.secondary, a.logger)

	telegramBot, err := bot.NewBot(a.config, a.db, reg, a.analytics, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created", zap.Int("admins", len(a.config.AdminIDs)))

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks and webhook
func (a *App) initHTTPServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // Default port
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := a.db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "store unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "Study Bot is running (mode: %s)", mode)
	})

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Failed to decode webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Respond to Telegram immediately; the update is processed on the
		// per-user queue.
		a.bot.HandleUpdate(update)
		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if a.config.WebhookMode {
		a.logger.Info("Starting bot in webhook mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		go func() {
			a.logger.Info("Starting bot in polling mode")
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	<-sigChan

	a.logger.Info("Shutting down")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.analytics.Close(); err != nil {
		a.logger.Error("Error closing analytics sink", zap.Error(err))
	}

	if a.secondary != nil {
		if err := a.secondary.Close(shutdownCtx); err != nil {
			a.logger.Error("Error closing secondary store", zap.Error(err))
		}
	}
	if err := a.db.Close(shutdownCtx); err != nil {
		a.logger.Error("Error closing store", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
