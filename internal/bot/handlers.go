package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/nav"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			msg := tgbotapi.NewMessage(message.Chat.ID, "An error occurred while processing your request. Please try again.")
			b.sendMessage(msg)
		}
	}()

	ctx := context.Background()
	userID := message.From.ID

	// Uploaded documents from admins become content records.
	if message.Document != nil {
		b.handleDocumentUpload(ctx, message)
		return
	}

	// An admin who started an interactive /broadcast sends the text next.
	if !message.IsCommand() && b.takePendingBroadcast(userID) {
		b.runBroadcast(ctx, message.Chat.ID, message.Text)
		return
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "batch":
		b.handleBatch(ctx, message)
	case "search":
		b.handleSearch(ctx, message)
	case "addbatch":
		b.adminOnly(message, func() { b.handleAddBatch(ctx, message) })
	case "delbatch":
		b.adminOnly(message, func() { b.handleDelBatch(ctx, message) })
	case "addcontent":
		b.adminOnly(message, func() { b.handleAddContent(ctx, message) })
	case "delcontent", "delfile":
		b.adminOnly(message, func() { b.handleDelFile(ctx, message) })
	case "deletefiles":
		b.adminOnly(message, func() { b.handleDeleteFiles(ctx, message) })
	case "ban":
		b.adminOnly(message, func() { b.handleBan(ctx, message) })
	case "unban":
		b.adminOnly(message, func() { b.handleUnban(ctx, message) })
	case "banlist":
		b.adminOnly(message, func() { b.handleBanList(ctx, message) })
	case "baninfo":
		b.adminOnly(message, func() { b.handleBanInfo(ctx, message) })
	case "broadcast":
		b.adminOnly(message, func() { b.handleBroadcast(ctx, message) })
	case "stats":
		b.adminOnly(message, func() { b.handleStats(ctx, message) })
	case "dbstats":
		b.adminOnly(message, func() { b.handleDBStats(ctx, message) })
	case "users":
		b.adminOnly(message, func() { b.handleUsers(ctx, message) })
	default:
		msg := tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Use /start to see available commands.")
		b.sendMessage(msg)
	}
}

// adminOnly runs fn only for configured admins.
func (b *Bot) adminOnly(message *tgbotapi.Message, fn func()) {
	if !b.cfg.IsAdmin(message.From.ID) {
		b.logger.Warn("Non-admin attempted admin command",
			zap.Int64("user_id", message.From.ID),
			zap.String("command", message.Command()),
		)
		msg := tgbotapi.NewMessage(message.Chat.ID, "This command is only available to admins.")
		b.sendMessage(msg)
		return
	}
	fn()
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
			b.answerCallback(query.ID, "An error occurred. Please try again.")
		}
	}()

	ctx := context.Background()

	prefix, fields, err := b.codec.Decode(query.Data)
	if err != nil {
		b.logger.Warn("Malformed callback data",
			zap.Error(err),
			zap.String("data", query.Data),
			zap.Int64("user_id", query.From.ID),
		)
		b.answerCallback(query.ID, "This menu has expired. Please start again.")
		return
	}

	if prefix == nav.PrefixBack {
		b.answerCallback(query.ID, "")
		b.handleBack(ctx, query, fields)
		return
	}

	path, err := nav.DecodePath(prefix, fields)
	if err != nil {
		b.logger.Warn("Malformed callback path",
			zap.Error(err),
			zap.String("data", query.Data),
			zap.Int64("user_id", query.From.ID),
		)
		b.answerCallback(query.ID, "This menu has expired. Please start again.")
		return
	}

	b.answerCallback(query.ID, "")

	switch prefix {
	case nav.PrefixSubject:
		b.showTeachers(ctx, query, path)
	case nav.PrefixTeacher:
		b.showChapterFormats(ctx, query, path)
	case nav.PrefixChapterFormat:
		b.showChapters(ctx, query, path)
	case nav.PrefixChapter:
		b.showContentTypes(ctx, query, path)
	case nav.PrefixContentType:
		b.showItems(ctx, query, path)
	case nav.PrefixLeaf:
		b.deliverContent(ctx, query, path)
	}
}
