package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/models"
	"studybot/internal/registry"
	"studybot/internal/storage"
)

// handleDocumentUpload registers an admin-uploaded file. The caption
// classifies it: "batch | subject | teacher | chapter | type [| item]".
func (b *Bot) handleDocumentUpload(ctx context.Context, message *tgbotapi.Message) {
	if !b.cfg.IsAdmin(message.From.ID) {
		return // Silently ignore stray uploads from students.
	}

	doc := message.Document
	if doc.FileSize > int(b.cfg.MaxFileSizeMB)*1024*1024 {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			fmt.Sprintf("File too large. The limit is %d MB.", b.cfg.MaxFileSizeMB))
		b.sendMessage(msg)
		return
	}

	meta := models.FileMeta{
		FileID:       doc.FileID,
		FileUniqueID: doc.FileUniqueID,
		FileName:     doc.FileName,
		FileSize:     int64(doc.FileSize),
		FileType:     "document",
		MimeType:     doc.MimeType,
		Caption:      message.Caption,
		UploadedBy:   message.From.ID,
	}

	// Re-sending a registered file captioned "delete" removes it.
	if strings.EqualFold(strings.TrimSpace(message.Caption), "delete") {
		if b.registry.DeleteFile(ctx, meta) {
			b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "🗑 File deleted."))
		} else {
			b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "This file is not registered."))
		}
		return
	}

	class, ok := parseClassificationCaption(message.Caption)
	if !ok {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"Caption must classify the file:\n\nbatch | subject | teacher | chapter | type [| item]\n\nExample: NEET2026 | Physics | Mr Sir | CH01 | Lectures | L01")
		b.sendMessage(msg)
		return
	}

	rec := registry.NewRecord(meta, class)
	result := b.registry.Register(ctx, rec)

	var text string
	switch result {
	case registry.Created:
		text = fmt.Sprintf("✅ File registered\n\n%s\n%s › %s › %s › %s",
			rec.FileName, rec.BatchName, rec.Subject, rec.ChapterNo, rec.ContentType)
	case registry.Duplicate:
		text = "⚠️ This file is already registered."
	default:
		text = "❌ Could not register the file. Please try again later."
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

// parseClassificationCaption splits "batch | subject | teacher | chapter |
// type [| item]" into a content filter.
func parseClassificationCaption(caption string) (storage.ContentFilter, bool) {
	parts := strings.Split(caption, "|")
	if len(parts) < 5 || len(parts) > 6 {
		return storage.ContentFilter{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if i < 5 && parts[i] == "" {
			return storage.ContentFilter{}, false
		}
	}

	filter := storage.ContentFilter{
		BatchName:   parts[0],
		Subject:     parts[1],
		Teacher:     parts[2],
		ChapterNo:   parts[3],
		ContentType: parts[4],
	}
	if len(parts) == 6 {
		filter.LectureNo = parts[5]
	}
	return filter, true
}

// handleAddBatch creates a batch with the default subject/teacher lists.
func (b *Bot) handleAddBatch(ctx context.Context, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /addbatch <name>"))
		return
	}

	batch := &models.Batch{
		Name:      name,
		Subjects:  b.cfg.DefaultSubjects,
		Teachers:  b.cfg.DefaultTeachers,
		IsActive:  true,
		CreatedBy: message.From.ID,
		CreatedAt: time.Now().UTC(),
	}

	err := b.db.CreateBatch(ctx, batch)
	if err == storage.ErrDuplicate {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("Batch %q already exists.", name)))
		return
	}
	if err != nil {
		b.logger.Error("Failed to create batch", zap.Error(err), zap.String("batch", name))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not create the batch. Please try again later."))
		return
	}

	b.storeBatchInCache(batch)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("✅ Batch %q created with %d subjects and %d teachers.",
			name, len(batch.Subjects), len(batch.Teachers))))
}

// handleDelBatch deletes a batch and cascades the delete to every content
// record classified under it, in every enabled store.
func (b *Bot) handleDelBatch(ctx context.Context, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /delbatch <name>"))
		return
	}

	removed, err := b.db.DeleteBatch(ctx, name)
	if err != nil {
		b.logger.Error("Failed to delete batch", zap.Error(err), zap.String("batch", name))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not delete the batch. Please try again later."))
		return
	}
	if !removed {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("Batch %q does not exist.", name)))
		return
	}

	deleted := b.registry.DeleteBatchContent(ctx, name)
	b.dropBatchFromCache(name)

	b.logger.Info("Batch deleted",
		zap.String("batch", name),
		zap.Int64("content_deleted", deleted),
		zap.Int64("admin_id", message.From.ID),
	)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("🗑 Batch %q deleted along with %d content records.", name, deleted)))
}

// handleAddContent creates a placeholder record for a path; the actual file
// is attached later by uploading with a matching caption.
func (b *Bot) handleAddContent(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 5 {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
			"Usage: /addcontent <batch> <subject> <teacher> <chapter> <type>"))
		return
	}

	rec := &models.ContentRecord{
		FileKey:     fmt.Sprintf("pending-%d", time.Now().UnixNano()),
		FileName:    fmt.Sprintf("%s %s %s", args[0], args[3], args[4]),
		BatchName:   args[0],
		Subject:     args[1],
		Teacher:     args[2],
		ChapterNo:   args[3],
		ContentType: args[4],
		UploadedBy:  message.From.ID,
		UploadedAt:  time.Now().UTC(),
		IsActive:    false, // Activated when the real file arrives.
	}

	if result := b.registry.Register(ctx, rec); result != registry.Created {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not create the placeholder record."))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("✅ Placeholder created for %s › %s › %s › %s › %s.\nUpload the file with a matching caption to activate it.",
			args[0], args[1], args[2], args[3], args[4])))
}

// handleDelFile deletes by exact stable key.
func (b *Bot) handleDelFile(ctx context.Context, message *tgbotapi.Message) {
	key := strings.TrimSpace(message.CommandArguments())
	if key == "" {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /delfile <file key>"))
		return
	}

	if b.registry.DeleteByKey(ctx, key) {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "🗑 File deleted."))
	} else {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "No file found with that key."))
	}
}

// handleDeleteFiles deletes every record whose file name contains the pattern.
func (b *Bot) handleDeleteFiles(ctx context.Context, message *tgbotapi.Message) {
	pattern := strings.TrimSpace(message.CommandArguments())
	if pattern == "" {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /deletefiles <name pattern>"))
		return
	}

	deleted := b.registry.DeleteByNamePattern(ctx, pattern)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("🗑 Deleted %d files matching %q.", deleted, pattern)))
}

// handleBan bans a user, with an optional reason.
func (b *Bot) handleBan(ctx context.Context, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) < 1 {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /ban <user_id> [reason]"))
		return
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Invalid user id."))
		return
	}
	if b.cfg.IsAdmin(userID) {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Admins cannot be banned."))
		return
	}

	reason := strings.Join(args[1:], " ")
	if err := b.db.BanUser(ctx, userID, reason); err != nil {
		b.logger.Error("Failed to ban user", zap.Error(err), zap.Int64("target_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not ban the user. Please try again later."))
		return
	}

	b.logger.Info("User banned",
		zap.Int64("target_id", userID),
		zap.String("reason", reason),
		zap.Int64("admin_id", message.From.ID),
	)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("🚫 User %d banned.", userID)))
}

// handleUnban lifts a ban.
func (b *Bot) handleUnban(ctx context.Context, message *tgbotapi.Message) {
	arg := strings.TrimSpace(message.CommandArguments())
	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /unban <user_id>"))
		return
	}

	if err := b.db.UnbanUser(ctx, userID); err != nil {
		b.logger.Error("Failed to unban user", zap.Error(err), zap.Int64("target_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not unban the user. Please try again later."))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("✅ User %d unbanned.", userID)))
}

// handleBanList lists currently banned users.
func (b *Bot) handleBanList(ctx context.Context, message *tgbotapi.Message) {
	banned, err := b.db.ListBannedUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to list banned users", zap.Error(err))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not load the ban list."))
		return
	}
	if len(banned) == 0 {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "No banned users."))
		return
	}

	var text strings.Builder
	text.WriteString("🚫 Banned users:\n\n")
	for _, u := range banned {
		text.WriteString(fmt.Sprintf("%d", u.UserID))
		if u.BanReason != "" {
			text.WriteString(" - " + u.BanReason)
		}
		text.WriteString("\n")
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text.String()))
}

// handleBanInfo shows the ban record for one user.
func (b *Bot) handleBanInfo(ctx context.Context, message *tgbotapi.Message) {
	arg := strings.TrimSpace(message.CommandArguments())
	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Usage: /baninfo <user_id>"))
		return
	}

	user, err := b.db.GetUser(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load user for ban info", zap.Error(err), zap.Int64("target_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not load the user."))
		return
	}
	if user == nil || !user.IsBanned {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("User %d is not banned.", userID)))
		return
	}

	text := fmt.Sprintf("🚫 User %d\nBanned: %s\nReason: %s",
		userID, user.BannedAt.Format("2006-01-02 15:04"), user.BanReason)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

// handleStats renders the delivery analytics aggregates.
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	total, err := b.analytics.TotalDeliveries(ctx)
	if err != nil {
		b.logger.Error("Failed to read total deliveries", zap.Error(err))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Analytics are unavailable right now."))
		return
	}

	stats, err := b.analytics.TopContent(ctx, 10)
	if err != nil {
		b.logger.Error("Failed to read top content", zap.Error(err))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Analytics are unavailable right now."))
		return
	}

	var text strings.Builder
	text.WriteString("📊 Delivery statistics\n\n")
	text.WriteString(fmt.Sprintf("Total deliveries: %d\n", total))
	if len(stats) > 0 {
		text.WriteString("\nTop content:\n")
		for i, stat := range stats {
			text.WriteString(fmt.Sprintf("%d. %s › %s › %s - %d\n",
				i+1, stat.BatchName, stat.Subject, stat.ContentType, stat.Deliveries))
		}
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text.String()))
}

// handleDBStats shows document counts per store.
func (b *Bot) handleDBStats(ctx context.Context, message *tgbotapi.Message) {
	users, err := b.db.CountUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to count users", zap.Error(err))
	}
	batches, err := b.db.CountBatches(ctx)
	if err != nil {
		b.logger.Error("Failed to count batches", zap.Error(err))
	}
	primary, secondary := b.registry.Counts(ctx)

	text := fmt.Sprintf("🗄 Database\n\nUsers: %d\nBatches: %d\nContent (primary): %d", users, batches, primary)
	if b.registry.DualStore() {
		text += fmt.Sprintf("\nContent (secondary): %d", secondary)
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

// handleUsers shows the user count.
func (b *Bot) handleUsers(ctx context.Context, message *tgbotapi.Message) {
	count, err := b.db.CountUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to count users", zap.Error(err))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Could not load user counts."))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("👥 Known users: %d", count)))
}
