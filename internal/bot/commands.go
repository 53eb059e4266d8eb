package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/storage"
)

// handleStart registers/touches the user and shows the welcome message.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	err := b.db.TouchUser(ctx, message.From.ID, message.From.FirstName, message.From.UserName)
	if err != nil {
		b.logger.Error("Failed to touch user on /start", zap.Error(err), zap.Int64("user_id", message.From.ID))
	}

	text := `Welcome to Study Bot! 📚

Available commands:
/batch <name> - Open a batch and browse its content
/search <query> - Search study files by name

Pick your batch to get started, for example:
/batch NEET2026`

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	b.sendMessage(msg)
}

// handleBatch enters the BatchSelected state: looks up or lazily creates the
// batch, persists current_batch and renders the subject menu.
func (b *Bot) handleBatch(ctx context.Context, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /batch <batch name>\n\nExample: /batch NEET2026")
		b.sendMessage(msg)
		return
	}

	if err := b.db.TouchUser(ctx, message.From.ID, message.From.FirstName, message.From.UserName); err != nil {
		b.logger.Error("Failed to touch user", zap.Error(err), zap.Int64("user_id", message.From.ID))
	}

	batch, err := b.ensureBatch(ctx, name, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to enter batch", zap.Error(err), zap.String("batch", name))
		msg := tgbotapi.NewMessage(message.Chat.ID, "Could not open that batch right now. Please try again later.")
		b.sendMessage(msg)
		return
	}

	err = b.db.UpdatePosition(ctx, message.From.ID, storage.PositionUpdate{Batch: strPtr(batch.Name)})
	if err != nil {
		b.logger.Error("Failed to persist current batch", zap.Error(err), zap.Int64("user_id", message.From.ID))
	}

	b.sendMenu(message.Chat.ID, b.menus.Subjects(batch))
}

// handleSearch returns content records matching the query text.
func (b *Bot) handleSearch(ctx context.Context, message *tgbotapi.Message) {
	query := strings.TrimSpace(message.CommandArguments())
	if query == "" {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /search <query>\n\nExample: /search thermodynamics")
		b.sendMessage(msg)
		return
	}

	results := b.registry.Search(ctx, query, 10)
	if len(results) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("No files found for %q.", query))
		b.sendMessage(msg)
		return
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("🔍 Results for %q:\n\n", query))
	for i, rec := range results {
		text.WriteString(fmt.Sprintf("%d. %s\n    %s › %s › %s › %s\n",
			i+1, rec.FileName, rec.BatchName, rec.Subject, rec.ChapterNo, rec.ContentType))
	}
	text.WriteString("\nUse /batch to navigate to a file.")

	msg := tgbotapi.NewMessage(message.Chat.ID, text.String())
	b.sendMessage(msg)
}
