package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentRecord is a stored reference to one deliverable file plus the
// classification metadata used to resolve it from a navigation path.
type ContentRecord struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`

	// FileKey is the stable part of the Telegram file identifier
	// (file_unique_id). Unique within one store.
	FileKey string `bson:"file_key"`
	// FileID is the volatile reference token actually used to send the file.
	FileID string `bson:"file_id"`

	FileName string `bson:"file_name"`
	FileSize int64  `bson:"file_size"`
	FileType string `bson:"file_type,omitempty"`
	MimeType string `bson:"mime_type,omitempty"`
	Caption  string `bson:"caption,omitempty"`

	// Classification attributes - the lookup key for navigation.
	BatchName   string   `bson:"batch_name"`
	Subject     string   `bson:"subject"`
	Teacher     string   `bson:"teacher"`
	ChapterNo   string   `bson:"chapter_no"`
	ContentType string   `bson:"content_type"`
	LectureNo   string   `bson:"lecture_no,omitempty"`
	ChapterName string   `bson:"chapter_name,omitempty"`
	Tags        []string `bson:"tags,omitempty"`

	UploadedBy int64     `bson:"uploaded_by"`
	UploadedAt time.Time `bson:"uploaded_at"`
	IsActive   bool      `bson:"is_active"`
}

// FileMeta describes an uploaded transport file before it becomes a ContentRecord.
type FileMeta struct {
	FileID       string
	FileUniqueID string
	FileName     string
	FileSize     int64
	FileType     string
	MimeType     string
	Caption      string
	UploadedBy   int64
}

// Batch is a named cohort grouping subjects, teachers and content.
type Batch struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Subjects  []string           `bson:"subjects"`
	Teachers  []string           `bson:"teachers"`
	IsActive  bool               `bson:"is_active"`
	CreatedBy int64              `bson:"created_by"`
	CreatedAt time.Time          `bson:"created_at"`
}

// User is a student or admin known to the bot, keyed by Telegram user id.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    int64              `bson:"user_id"`
	FirstName string             `bson:"first_name,omitempty"`
	Username  string             `bson:"username,omitempty"`

	// Last-known navigation position, persisted opportunistically so a student
	// can resume without re-entering the batch command.
	CurrentBatch   string `bson:"current_batch,omitempty"`
	CurrentSubject string `bson:"current_subject,omitempty"`
	CurrentTeacher string `bson:"current_teacher,omitempty"`
	CurrentChapter string `bson:"current_chapter,omitempty"`

	// StudyProgress holds per-path visit counts keyed by
	// "batch.subject.chapter" (see ProgressKey). Stored as an array of
	// entries because dotted keys are not addressable by document-store
	// update operators.
	StudyProgress  []ProgressEntry `bson:"study_progress,omitempty"`
	TotalDownloads int64           `bson:"total_downloads"`

	IsBanned  bool      `bson:"is_banned"`
	BanReason string    `bson:"ban_reason,omitempty"`
	BannedAt  time.Time `bson:"banned_at,omitempty"`

	JoinedAt   time.Time `bson:"joined_at"`
	LastSeenAt time.Time `bson:"last_seen_at"`
}

// ProgressEntry is one study-progress slot: a navigation key plus visit
// counts per content type.
type ProgressEntry struct {
	Key    string         `bson:"key"`
	Counts map[string]int `bson:"counts"`
}

// ProgressCount returns the visit count recorded for the given key and
// content type, or 0.
func (u *User) ProgressCount(key, contentType string) int {
	for _, e := range u.StudyProgress {
		if e.Key == key {
			return e.Counts[contentType]
		}
	}
	return 0
}

// ProgressKey builds the "batch.subject.chapter" study-progress key. The
// separator is ".", so any "." inside a component is replaced with "_" to
// keep the key parseable.
func ProgressKey(batch, subject, chapter string) string {
	clean := func(s string) string { return strings.ReplaceAll(s, ".", "_") }
	return clean(batch) + "." + clean(subject) + "." + clean(chapter)
}

// DeliveryEvent is one successful content delivery, recorded best-effort
// to the analytics sink.
type DeliveryEvent struct {
	UserID      int64
	BatchName   string
	Subject     string
	Teacher     string
	ChapterNo   string
	ContentType string
	ItemID      string
	FileKey     string
	DeliveredAt time.Time
}

// ContentStat is an aggregate row for admin statistics.
type ContentStat struct {
	BatchName   string
	Subject     string
	ContentType string
	Deliveries  uint64
}
