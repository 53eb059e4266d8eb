package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"studybot/internal/models"
	"studybot/internal/nav"
	"studybot/internal/storage"
)

// showTeachers handles a subject selection: persists current_subject and
// renders the teacher menu.
func (b *Bot) showTeachers(ctx context.Context, query *tgbotapi.CallbackQuery, path nav.Path) {
	batch, err := b.ensureBatch(ctx, path.Batch, query.From.ID)
	if err != nil {
		b.logger.Error("Failed to load batch for teacher menu", zap.Error(err), zap.String("batch", path.Batch))
		b.sendMessage(tgbotapi.NewMessage(query.Message.Chat.ID, "Something went wrong. Please try again later."))
		return
	}

	err = b.db.UpdatePosition(ctx, query.From.ID, storage.PositionUpdate{Subject: strPtr(path.Subject)})
	if err != nil {
		b.logger.Error("Failed to persist current subject", zap.Error(err), zap.Int64("user_id", query.From.ID))
	}

	b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.Teachers(batch, path.Subject))
}

// showChapterFormats handles a teacher selection.
func (b *Bot) showChapterFormats(ctx context.Context, query *tgbotapi.CallbackQuery, path nav.Path) {
	err := b.db.UpdatePosition(ctx, query.From.ID, storage.PositionUpdate{Teacher: strPtr(path.Teacher)})
	if err != nil {
		b.logger.Error("Failed to persist current teacher", zap.Error(err), zap.Int64("user_id", query.From.ID))
	}

	b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.ChapterFormats(path))
}

// showChapters handles a chapter-format selection. The chapter list is a
// fixed-size render independent of what has actually been uploaded.
func (b *Bot) showChapters(ctx context.Context, query *tgbotapi.CallbackQuery, path nav.Path) {
	b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.Chapters(path))
}

// showContentTypes handles a chapter selection: persists current_chapter.
func (b *Bot) showContentTypes(ctx context.Context, query *tgbotapi.CallbackQuery, path nav.Path) {
	err := b.db.UpdatePosition(ctx, query.From.ID, storage.PositionUpdate{Chapter: strPtr(path.Chapter)})
	if err != nil {
		b.logger.Error("Failed to persist current chapter", zap.Error(err), zap.Int64("user_id", query.From.ID))
	}

	b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.ContentTypes(path))
}

// showItems handles a content-type selection, branching to lectures, DPP
// formats or material subtypes.
func (b *Bot) showItems(ctx context.Context, query *tgbotapi.CallbackQuery, path nav.Path) {
	b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.Items(path))
}

// deliverContent is the terminal step: resolve the accumulated path to a
// stored file and forward it through the delivery account.
func (b *Bot) deliverContent(ctx context.Context, query *tgbotapi.CallbackQuery, path nav.Path) {
	chatID := query.Message.Chat.ID

	filter := storage.ContentFilter{
		BatchName:   path.Batch,
		Subject:     path.Subject,
		Teacher:     path.Teacher,
		ChapterNo:   path.Chapter,
		ContentType: path.ContentType,
		LectureNo:   path.Item,
	}

	rec, err := b.registry.Resolve(ctx, filter)
	if err != nil {
		b.sendMessage(tgbotapi.NewMessage(chatID,
			"The content service is unavailable right now. Please try again in a moment."))
		return
	}
	if rec == nil {
		text := fmt.Sprintf("😔 Not available yet:\n\n%s › %s › %s › %s › %s %s\n\nIt will be uploaded soon.",
			path.Batch, path.Subject, path.Teacher, path.Chapter, path.ContentType, path.Item)
		b.sendMessage(tgbotapi.NewMessage(chatID, text))
		return
	}

	if !b.sendDocument(chatID, rec) {
		b.sendMessage(tgbotapi.NewMessage(chatID,
			"Could not deliver the file. Please try again in a moment."))
		return
	}

	progressKey := models.ProgressKey(path.Batch, path.Subject, path.Chapter)
	if err := b.db.RecordDelivery(ctx, query.From.ID, progressKey, path.ContentType); err != nil {
		b.logger.Error("Failed to record delivery",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID),
			zap.String("progress_key", progressKey),
		)
	}

	// Best-effort analytics write; intentionally not atomic with the above.
	event := models.DeliveryEvent{
		UserID:      query.From.ID,
		BatchName:   path.Batch,
		Subject:     path.Subject,
		Teacher:     path.Teacher,
		ChapterNo:   path.Chapter,
		ContentType: path.ContentType,
		ItemID:      path.Item,
		FileKey:     rec.FileKey,
		DeliveredAt: time.Now().UTC(),
	}
	if err := b.analytics.RecordDelivery(ctx, event); err != nil {
		b.logger.Warn("Failed to record analytics event", zap.Error(err))
	}

	b.logger.Info("Content delivered",
		zap.Int64("user_id", query.From.ID),
		zap.String("file_key", rec.FileKey),
		zap.String("batch", path.Batch),
		zap.String("content_type", path.ContentType),
	)
}

// sendDocument forwards a stored file by its transport reference token.
func (b *Bot) sendDocument(chatID int64, rec *models.ContentRecord) bool {
	api := b.deliveryAPI()
	if api == nil {
		return true // For testing
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(rec.FileID))
	if rec.Caption != "" {
		doc.Caption = rec.Caption
	} else {
		doc.Caption = rec.FileName
	}

	if _, err := api.Send(doc); err != nil {
		b.logger.Error("Failed to send document",
			zap.Error(err),
			zap.String("file_key", rec.FileKey),
			zap.Int64("chat_id", chatID),
		)
		return false
	}
	return true
}

// handleBack re-renders the ancestor screen named by the level field. This
// is a sideways jump, not a history pop.
func (b *Bot) handleBack(ctx context.Context, query *tgbotapi.CallbackQuery, fields []string) {
	if len(fields) == 0 {
		return
	}
	level, rest := fields[0], fields[1:]

	switch level {
	case nav.BackSubjects:
		if len(rest) != 1 {
			return
		}
		batch, err := b.ensureBatch(ctx, rest[0], query.From.ID)
		if err != nil {
			return
		}
		b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.Subjects(batch))
	case nav.BackTeachers:
		if len(rest) != 2 {
			return
		}
		batch, err := b.ensureBatch(ctx, rest[0], query.From.ID)
		if err != nil {
			return
		}
		b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.Teachers(batch, rest[1]))
	case nav.BackFormats:
		if len(rest) != 3 {
			return
		}
		path := nav.Path{Batch: rest[0], Subject: rest[1], Teacher: rest[2]}
		b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.ChapterFormats(path))
	case nav.BackChapters:
		if len(rest) != 4 {
			return
		}
		path := nav.Path{Batch: rest[0], Subject: rest[1], Teacher: rest[2], Format: rest[3]}
		b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.Chapters(path))
	case nav.BackContentTypes:
		if len(rest) != 4 {
			return
		}
		path := nav.Path{Batch: rest[0], Subject: rest[1], Teacher: rest[2], Chapter: rest[3]}
		b.editMenu(query.Message.Chat.ID, query.Message.MessageID, b.menus.ContentTypes(path))
	}
}
