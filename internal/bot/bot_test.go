package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studybot/internal/analytics"
	"studybot/internal/config"
	"studybot/internal/models"
	"studybot/internal/nav"
	"studybot/internal/registry"
	"studybot/internal/storage"
	"studybot/internal/storage/stubs"
)

const (
	adminID   = int64(1)
	studentID = int64(100)
)

// newTestBot builds a bot with a nil API (sends become no-ops) backed by the
// in-memory store.
func newTestBot(t *testing.T) (*Bot, *stubs.MockStore) {
	t.Helper()

	db := stubs.NewMockStore()
	logger := zap.NewNop()
	cfg := &config.Config{
		AdminIDs:        []int64{adminID},
		DefaultSubjects: []string{"Physics", "Chemistry", "Biology"},
		DefaultTeachers: []string{"Mr Sir", "Saleem Sir"},
		ChapterCount:    20,
		LectureCount:    15,
		MaxFileSizeMB:   2000,
	}
	codec := nav.NewCodec()

	bot := &Bot{
		db:               db,
		registry:         registry.New(db, nil, logger),
		analytics:        analytics.Nop{},
		cfg:              cfg,
		codec:            codec,
		menus:            nav.NewMenus(codec, cfg.ChapterCount, cfg.LectureCount),
		userLocks:        make(map[int64]*sync.Mutex),
		batchCache:       make(map[string]batchCacheEntry),
		pendingBroadcast: make(map[int64]bool),
		logger:           logger,
	}
	return bot, db
}

func commandMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "test"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(strings.SplitN(text, " ", 2)[0])
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func callbackQuery(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cq1",
		From:    &tgbotapi.User{ID: userID, FirstName: "Test"},
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}
}

func uploadRecord(t *testing.T, b *Bot, key string, class storage.ContentFilter) {
	t.Helper()
	meta := models.FileMeta{
		FileID:       "fid-" + key,
		FileUniqueID: key,
		FileName:     key + ".pdf",
		FileSize:     1024,
		MimeType:     "application/pdf",
		UploadedBy:   adminID,
	}
	result := b.registry.Register(context.Background(), registry.NewRecord(meta, class))
	require.Equal(t, registry.Created, result)
}

func TestBot_StartCommand(t *testing.T) {
	bot, db := newTestBot(t)

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/start")})

	user, err := db.GetUser(context.Background(), studentID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Test", user.FirstName)
}

func TestBot_BatchCommand_AutoCreates(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/batch NEET2026")})

	batch, err := db.GetBatch(ctx, "NEET2026")
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, []string{"Physics", "Chemistry", "Biology"}, batch.Subjects)
	assert.Equal(t, studentID, batch.CreatedBy)

	user, err := db.GetUser(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, "NEET2026", user.CurrentBatch)
}

func TestBot_BatchCommand_NoArgument(t *testing.T) {
	bot, db := newTestBot(t)

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/batch")})

	count, err := db.CountBatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_BatchCommand_KeepsExisting(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBatch(ctx, &models.Batch{
		Name:     "NEET2026",
		Subjects: []string{"Physics"},
		Teachers: []string{"Mr Sir"},
		IsActive: true,
	}))

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/batch NEET2026")})

	batch, err := db.GetBatch(ctx, "NEET2026")
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics"}, batch.Subjects)
}

func TestBot_NavigationPersistsPosition(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/batch NEET2026")})

	data := bot.codec.Encode(nav.PrefixSubject, "NEET2026", "Physics")
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, data)})

	data = bot.codec.Encode(nav.PrefixTeacher, "NEET2026", "Physics", "Mr Sir")
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, data)})

	data = bot.codec.Encode(nav.PrefixChapter, "NEET2026", "Physics", "Mr Sir", "CH01")
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, data)})

	user, err := db.GetUser(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, "NEET2026", user.CurrentBatch)
	assert.Equal(t, "Physics", user.CurrentSubject)
	assert.Equal(t, "Mr Sir", user.CurrentTeacher)
	assert.Equal(t, "CH01", user.CurrentChapter)
}

func TestBot_DeliverContent(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	class := storage.ContentFilter{
		BatchName:   "NEET2026",
		Subject:     "Physics",
		Teacher:     "Mr Sir",
		ChapterNo:   "CH01",
		ContentType: nav.ContentLectures,
		LectureNo:   "L01",
	}
	uploadRecord(t, bot, "key1", class)

	data := bot.codec.Encode(nav.PrefixLeaf, "NEET2026", "Physics", "Mr Sir", "CH01", nav.ContentLectures, "L01")
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, data)})
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, data)})

	user, err := db.GetUser(ctx, studentID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(2), user.TotalDownloads)

	key := models.ProgressKey("NEET2026", "Physics", "CH01")
	assert.Equal(t, 2, user.ProgressCount(key, nav.ContentLectures))
	assert.Equal(t, 0, user.ProgressCount(key, nav.ContentDPP))
}

func TestBot_DeliverContent_NotAvailable(t *testing.T) {
	bot, db := newTestBot(t)

	data := bot.codec.Encode(nav.PrefixLeaf, "NEET2026", "Physics", "Mr Sir", "CH01", nav.ContentLectures, "L09")
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, data)})

	// A miss must not count as a delivery
	user, err := db.GetUser(context.Background(), studentID)
	require.NoError(t, err)
	if user != nil {
		assert.Equal(t, int64(0), user.TotalDownloads)
	}
}

func TestBot_BannedUserDropped(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, db.BanUser(ctx, studentID, "spam"))

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/batch NEET2026")})

	count, err := db.CountBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_AdminsBypassBan(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, db.BanUser(ctx, adminID, "accident"))

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/addbatch NEET2026")})

	count, err := db.CountBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBot_AdminOnlyCommands(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	// Student cannot create batches through the admin command
	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(studentID, "/addbatch NEET2026")})
	count, err := db.CountBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/addbatch NEET2026")})
	count, err = db.CountBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBot_BanCommand(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/ban 100 posting spam")})

	user, err := db.GetUser(ctx, studentID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsBanned)
	assert.Equal(t, "posting spam", user.BanReason)

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/unban 100")})

	user, err = db.GetUser(ctx, studentID)
	require.NoError(t, err)
	assert.False(t, user.IsBanned)
}

func TestBot_BanCommand_CannotBanAdmin(t *testing.T) {
	bot, db := newTestBot(t)

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/ban 1")})

	user, err := db.GetUser(context.Background(), adminID)
	require.NoError(t, err)
	if user != nil {
		assert.False(t, user.IsBanned)
	}
}

func TestBot_DelBatchCascades(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/addbatch NEET2026")})
	uploadRecord(t, bot, "key1", storage.ContentFilter{
		BatchName: "NEET2026", Subject: "Physics", Teacher: "Mr Sir",
		ChapterNo: "CH01", ContentType: nav.ContentLectures, LectureNo: "L01",
	})

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/delbatch NEET2026")})

	batch, err := db.GetBatch(ctx, "NEET2026")
	require.NoError(t, err)
	assert.Nil(t, batch)

	count, err := db.CountContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_DocumentUpload(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	msg := commandMessage(adminID, "")
	msg.Document = &tgbotapi.Document{
		FileID:       "fid-abc",
		FileUniqueID: "uniq-abc",
		FileName:     "thermo_notes.pdf",
		FileSize:     4096,
		MimeType:     "application/pdf",
	}
	msg.Caption = "NEET2026 | Physics | Mr Sir | CH01 | Lectures | L01"

	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})

	rec, err := db.FindContent(ctx, storage.ContentFilter{
		BatchName: "NEET2026", Subject: "Physics", Teacher: "Mr Sir",
		ChapterNo: "CH01", ContentType: nav.ContentLectures, LectureNo: "L01",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "uniq-abc", rec.FileKey)
	assert.Equal(t, "thermo notes.pdf", rec.FileName)
	assert.Equal(t, adminID, rec.UploadedBy)
	assert.True(t, rec.IsActive)
}

func TestBot_DocumentUpload_NonAdminIgnored(t *testing.T) {
	bot, db := newTestBot(t)

	msg := commandMessage(studentID, "")
	msg.Document = &tgbotapi.Document{FileID: "fid", FileUniqueID: "uniq", FileName: "x.pdf"}
	msg.Caption = "NEET2026 | Physics | Mr Sir | CH01 | Lectures"

	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})

	count, err := db.CountContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_DocumentUpload_BadCaption(t *testing.T) {
	bot, db := newTestBot(t)

	msg := commandMessage(adminID, "")
	msg.Document = &tgbotapi.Document{FileID: "fid", FileUniqueID: "uniq", FileName: "x.pdf"}
	msg.Caption = "no pipes here"

	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})

	count, err := db.CountContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_DocumentUpload_Duplicate(t *testing.T) {
	bot, db := newTestBot(t)

	msg := commandMessage(adminID, "")
	msg.Document = &tgbotapi.Document{FileID: "fid", FileUniqueID: "uniq", FileName: "x.pdf", FileSize: 10}
	msg.Caption = "NEET2026 | Physics | Mr Sir | CH01 | Lectures"

	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})
	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})

	count, err := db.CountContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBot_DocumentUpload_DeleteByReupload(t *testing.T) {
	bot, db := newTestBot(t)

	msg := commandMessage(adminID, "")
	msg.Document = &tgbotapi.Document{
		FileID:       "fid-abc",
		FileUniqueID: "uniq-abc",
		FileName:     "thermo_notes.pdf",
		FileSize:     4096,
		MimeType:     "application/pdf",
	}
	msg.Caption = "NEET2026 | Physics | Mr Sir | CH01 | Lectures | L01"
	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})

	// Re-sending the same file captioned "delete" removes the record
	msg.Caption = "delete"
	bot.HandleUpdateSync(tgbotapi.Update{Message: msg})

	count, err := db.CountContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_InteractiveBroadcast(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, db.TouchUser(ctx, studentID, "Asha", "asha"))

	// /broadcast with no text arms the next message
	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "/broadcast")})
	assert.True(t, bot.pendingBroadcast[adminID])

	bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(adminID, "Exam postponed to Sunday")})
	assert.False(t, bot.pendingBroadcast[adminID])

	// A second plain message is not re-broadcast
	assert.False(t, bot.takePendingBroadcast(adminID))
}

func TestParseClassificationCaption(t *testing.T) {
	class, ok := parseClassificationCaption("NEET2026 | Physics | Mr Sir | CH01 | Lectures | L01")
	require.True(t, ok)
	assert.Equal(t, "NEET2026", class.BatchName)
	assert.Equal(t, "Physics", class.Subject)
	assert.Equal(t, "Mr Sir", class.Teacher)
	assert.Equal(t, "CH01", class.ChapterNo)
	assert.Equal(t, "Lectures", class.ContentType)
	assert.Equal(t, "L01", class.LectureNo)

	// Item part is optional
	class, ok = parseClassificationCaption("NEET2026 | Physics | Mr Sir | CH01 | DPP")
	require.True(t, ok)
	assert.Empty(t, class.LectureNo)

	_, ok = parseClassificationCaption("NEET2026 | Physics")
	assert.False(t, ok)

	_, ok = parseClassificationCaption("NEET2026 | | Mr Sir | CH01 | Lectures")
	assert.False(t, ok)

	_, ok = parseClassificationCaption("")
	assert.False(t, ok)
}

func TestBot_ExpiredCallbackIgnored(t *testing.T) {
	bot, db := newTestBot(t)

	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, "tk_000000000000")})
	bot.HandleUpdateSync(tgbotapi.Update{CallbackQuery: callbackQuery(studentID, "sub_onlyonefield")})

	// Neither malformed callback may touch state
	count, err := db.CountBatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBot_ConcurrentUsers(t *testing.T) {
	bot, db := newTestBot(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			bot.HandleUpdateSync(tgbotapi.Update{Message: commandMessage(id, "/start")})
		}(int64(200 + i))
	}
	wg.Wait()

	count, err := db.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}
