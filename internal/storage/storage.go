package storage

import (
	"context"
	"errors"

	"studybot/internal/models"
)

// ErrDuplicate is returned by insert operations when the content key
// collides with an existing record in the same store.
var ErrDuplicate = errors.New("duplicate content key")

// ContentFilter is an exact-match filter over the classification attributes.
// Empty fields are not matched. Matching is case-sensitive.
type ContentFilter struct {
	BatchName   string
	Subject     string
	Teacher     string
	ChapterNo   string
	ContentType string
	LectureNo   string
}

// PositionUpdate carries the navigation fields to persist on a user record.
// Nil fields are left untouched.
type PositionUpdate struct {
	Batch   *string
	Subject *string
	Teacher *string
	Chapter *string
}

// ContentStore is the content collection of one document database. The
// secondary (overflow) store implements only this subset.
type ContentStore interface {
	// InsertContent stores a record. Returns ErrDuplicate if a record with
	// the same FileKey already exists in this store.
	InsertContent(ctx context.Context, rec *models.ContentRecord) error
	CountContentByKey(ctx context.Context, fileKey string) (int64, error)

	// FindContent returns the first active record matching the filter, or
	// (nil, nil) when no record matches. First-found order follows the
	// store's natural order.
	FindContent(ctx context.Context, filter ContentFilter) (*models.ContentRecord, error)

	// SearchContent matches query as a case-insensitive substring of
	// file_name or caption among active records.
	SearchContent(ctx context.Context, query string, limit int64) ([]models.ContentRecord, error)

	DeleteContentByKey(ctx context.Context, fileKey string) (int64, error)
	DeleteContentByFile(ctx context.Context, fileName string, fileSize int64, mimeType string) (int64, error)
	DeleteContentByBatch(ctx context.Context, batchName string) (int64, error)
	DeleteContentByNamePattern(ctx context.Context, pattern string) (int64, error)
	CountContent(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Store is the full primary database: content plus batches and users.
type Store interface {
	ContentStore

	// Batch operations
	GetBatch(ctx context.Context, name string) (*models.Batch, error) // (nil, nil) when absent
	CreateBatch(ctx context.Context, batch *models.Batch) error       // ErrDuplicate if the name is taken
	DeleteBatch(ctx context.Context, name string) (bool, error)
	ListBatches(ctx context.Context) ([]models.Batch, error)
	CountBatches(ctx context.Context) (int64, error)

	// User operations
	GetUser(ctx context.Context, userID int64) (*models.User, error) // (nil, nil) when unknown
	TouchUser(ctx context.Context, userID int64, firstName, username string) error
	UpdatePosition(ctx context.Context, userID int64, pos PositionUpdate) error

	// RecordDelivery atomically increments total_downloads and the
	// per-content-type counter under progressKey.
	RecordDelivery(ctx context.Context, userID int64, progressKey, contentType string) error

	BanUser(ctx context.Context, userID int64, reason string) error
	UnbanUser(ctx context.Context, userID int64) error
	ListBannedUsers(ctx context.Context) ([]models.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)
}
