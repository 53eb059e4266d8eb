package stubs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/internal/models"
	"studybot/internal/storage"
)

func record(key, name, batch, subject, chapter, contentType, item string) *models.ContentRecord {
	return &models.ContentRecord{
		FileKey:     key,
		FileID:      "fid-" + key,
		FileName:    name,
		FileSize:    1024,
		MimeType:    "application/pdf",
		BatchName:   batch,
		Subject:     subject,
		Teacher:     "Mr Sir",
		ChapterNo:   chapter,
		ContentType: contentType,
		LectureNo:   item,
		UploadedAt:  time.Now().UTC(),
		IsActive:    true,
	}
}

func TestMockStore_InsertContent(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	err := db.InsertContent(ctx, record("k1", "physics-ch1.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01"))
	require.NoError(t, err)

	// Same key again is a duplicate
	err = db.InsertContent(ctx, record("k1", "other.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L02"))
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	count, err := db.CountContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMockStore_FindContent(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.InsertContent(ctx, record("k1", "a.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01")))
	require.NoError(t, db.InsertContent(ctx, record("k2", "b.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L02")))
	require.NoError(t, db.InsertContent(ctx, record("k3", "c.pdf", "NEET2026", "Chemistry", "CH01", "DPP", "Quiz")))

	rec, err := db.FindContent(ctx, storage.ContentFilter{
		BatchName: "NEET2026", Subject: "Physics", ChapterNo: "CH01", ContentType: "Lectures", LectureNo: "L02",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "k2", rec.FileKey)

	// No match yields (nil, nil)
	rec, err = db.FindContent(ctx, storage.ContentFilter{Subject: "Biology"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMockStore_FindContent_FirstMatchWins(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.InsertContent(ctx, record("k1", "first.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01")))
	require.NoError(t, db.InsertContent(ctx, record("k2", "second.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01")))

	rec, err := db.FindContent(ctx, storage.ContentFilter{
		BatchName: "NEET2026", Subject: "Physics", ChapterNo: "CH01", ContentType: "Lectures", LectureNo: "L01",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "k1", rec.FileKey)
}

func TestMockStore_FindContent_SkipsInactive(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	inactive := record("k1", "a.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01")
	inactive.IsActive = false
	require.NoError(t, db.InsertContent(ctx, inactive))

	rec, err := db.FindContent(ctx, storage.ContentFilter{BatchName: "NEET2026"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMockStore_SearchContent(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.InsertContent(ctx, record("k1", "Thermodynamics Notes.pdf", "NEET2026", "Physics", "CH08", "Materials", "Notes")))
	require.NoError(t, db.InsertContent(ctx, record("k2", "waves.pdf", "NEET2026", "Physics", "CH10", "Lectures", "L01")))

	results, err := db.SearchContent(ctx, "thermo", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "k1", results[0].FileKey)

	// Caption matches too
	withCaption := record("k3", "x.pdf", "NEET2026", "Chemistry", "CH01", "Materials", "Notes")
	withCaption.Caption = "Full thermodynamics summary"
	require.NoError(t, db.InsertContent(ctx, withCaption))

	results, err = db.SearchContent(ctx, "THERMO", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = db.SearchContent(ctx, "thermo", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMockStore_DeleteContent(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.InsertContent(ctx, record("k1", "a.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01")))
	require.NoError(t, db.InsertContent(ctx, record("k2", "b.pdf", "NEET2026", "Physics", "CH02", "Lectures", "L01")))
	require.NoError(t, db.InsertContent(ctx, record("k3", "c.pdf", "JEE2026", "Maths", "CH01", "Lectures", "L01")))

	n, err := db.DeleteContentByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.DeleteContentByBatch(ctx, "NEET2026")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := db.CountContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMockStore_DeleteContentByFile(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.InsertContent(ctx, record("k1", "a.pdf", "NEET2026", "Physics", "CH01", "Lectures", "L01")))

	// Size mismatch does not delete
	n, err := db.DeleteContentByFile(ctx, "a.pdf", 99, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = db.DeleteContentByFile(ctx, "a.pdf", 1024, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMockStore_DeleteContentByNamePattern(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.InsertContent(ctx, record("k1", "Old Notes CH01.pdf", "NEET2026", "Physics", "CH01", "Materials", "Notes")))
	require.NoError(t, db.InsertContent(ctx, record("k2", "old notes CH02.pdf", "NEET2026", "Physics", "CH02", "Materials", "Notes")))
	require.NoError(t, db.InsertContent(ctx, record("k3", "waves.pdf", "NEET2026", "Physics", "CH10", "Lectures", "L01")))

	n, err := db.DeleteContentByNamePattern(ctx, "old notes")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMockStore_Batches(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	batch := &models.Batch{Name: "NEET2026", Subjects: []string{"Physics"}, IsActive: true}
	require.NoError(t, db.CreateBatch(ctx, batch))

	err := db.CreateBatch(ctx, &models.Batch{Name: "NEET2026"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := db.GetBatch(ctx, "NEET2026")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"Physics"}, got.Subjects)

	got, err = db.GetBatch(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.CreateBatch(ctx, &models.Batch{Name: "JEE2026"}))
	batches, err := db.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "JEE2026", batches[0].Name)
	assert.Equal(t, "NEET2026", batches[1].Name)

	removed, err := db.DeleteBatch(ctx, "JEE2026")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.DeleteBatch(ctx, "JEE2026")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMockStore_TouchUser(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.TouchUser(ctx, 100, "Asha", "asha"))

	user, err := db.GetUser(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Asha", user.FirstName)
	assert.False(t, user.JoinedAt.IsZero())

	// Unknown user yields (nil, nil)
	user, err = db.GetUser(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestMockStore_UpdatePosition(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	batch := "NEET2026"
	subject := "Physics"
	require.NoError(t, db.UpdatePosition(ctx, 100, storage.PositionUpdate{Batch: &batch, Subject: &subject}))

	// Nil fields leave earlier values untouched
	teacher := "Mr Sir"
	require.NoError(t, db.UpdatePosition(ctx, 100, storage.PositionUpdate{Teacher: &teacher}))

	user, err := db.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "NEET2026", user.CurrentBatch)
	assert.Equal(t, "Physics", user.CurrentSubject)
	assert.Equal(t, "Mr Sir", user.CurrentTeacher)
}

func TestMockStore_RecordDelivery(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	key := models.ProgressKey("NEET2026", "Physics", "CH01")
	require.NoError(t, db.RecordDelivery(ctx, 100, key, "Lectures"))
	require.NoError(t, db.RecordDelivery(ctx, 100, key, "Lectures"))
	require.NoError(t, db.RecordDelivery(ctx, 100, key, "DPP"))

	user, err := db.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.TotalDownloads)
	assert.Equal(t, 2, user.ProgressCount(key, "Lectures"))
	assert.Equal(t, 1, user.ProgressCount(key, "DPP"))
	assert.Equal(t, 0, user.ProgressCount(key, "Materials"))
}

func TestMockStore_BanUnban(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.BanUser(ctx, 100, "spam"))
	require.NoError(t, db.BanUser(ctx, 200, ""))

	user, err := db.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.True(t, user.IsBanned)
	assert.Equal(t, "spam", user.BanReason)
	assert.False(t, user.BannedAt.IsZero())

	banned, err := db.ListBannedUsers(ctx)
	require.NoError(t, err)
	require.Len(t, banned, 2)
	assert.Equal(t, int64(100), banned[0].UserID)

	require.NoError(t, db.UnbanUser(ctx, 100))
	user, err = db.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.False(t, user.IsBanned)
	assert.Empty(t, user.BanReason)

	banned, err = db.ListBannedUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, banned, 1)
}

func TestMockStore_ListUserIDs(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	require.NoError(t, db.TouchUser(ctx, 300, "c", ""))
	require.NoError(t, db.TouchUser(ctx, 100, "a", ""))
	require.NoError(t, db.TouchUser(ctx, 200, "b", ""))

	ids, err := db.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, ids)

	count, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
