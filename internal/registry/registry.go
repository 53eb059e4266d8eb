package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"studybot/internal/models"
	"studybot/internal/storage"
)

// RegisterResult is the outcome of a registration attempt.
type RegisterResult int

const (
	Created RegisterResult = iota
	Duplicate
	Failed
)

func (r RegisterResult) String() string {
	switch r {
	case Created:
		return "created"
	case Duplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Registry maps uploaded transport files to stored content records and
// navigation paths to deliverable files, across a primary store and an
// optional secondary overflow store.
type Registry struct {
	primary   storage.ContentStore
	secondary storage.ContentStore // nil when dual-store mode is off
	logger    *zap.Logger
}

// New creates a registry. Pass a nil secondary to disable dual-store mode.
func New(primary, secondary storage.ContentStore, logger *zap.Logger) *Registry {
	return &Registry{primary: primary, secondary: secondary, logger: logger}
}

// DualStore reports whether a secondary overflow store is configured.
func (r *Registry) DualStore() bool {
	return r.secondary != nil
}

// StableKey derives the dedup key from a transport file descriptor. Telegram
// hands out two identifiers: file_unique_id, stable for the media across
// chats and bots, and file_id, a volatile reference token. Only the stable
// part keys the store.
func StableKey(meta models.FileMeta) string {
	if meta.FileUniqueID != "" {
		return meta.FileUniqueID
	}
	return meta.FileID
}

const strippedPunct = "_()[]{}#@!$%^&*+=|~<>\"'"

// SanitizeFileName strips noisy punctuation and collapses whitespace.
// Dots and dashes survive so extensions stay readable.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedPunct, r) {
			return ' '
		}
		return r
	}, name)
	return strings.Join(strings.Fields(cleaned), " ")
}

// NewRecord builds a ContentRecord from a transport file descriptor and its
// classification.
func NewRecord(meta models.FileMeta, class storage.ContentFilter) *models.ContentRecord {
	return &models.ContentRecord{
		FileKey:     StableKey(meta),
		FileID:      meta.FileID,
		FileName:    SanitizeFileName(meta.FileName),
		FileSize:    meta.FileSize,
		FileType:    meta.FileType,
		MimeType:    meta.MimeType,
		Caption:     meta.Caption,
		BatchName:   class.BatchName,
		Subject:     class.Subject,
		Teacher:     class.Teacher,
		ChapterNo:   class.ChapterNo,
		ContentType: class.ContentType,
		LectureNo:   class.LectureNo,
		UploadedBy:  meta.UploadedBy,
		UploadedAt:  time.Now().UTC(),
		IsActive:    true,
	}
}

// Register stores the record, routing to the secondary store when the key
// already exists in the primary. The primary is always the first-write
// target; the secondary only ever receives overflow duplicates.
func (r *Registry) Register(ctx context.Context, rec *models.ContentRecord) RegisterResult {
	target := r.primary
	targetName := "primary"

	if r.secondary != nil {
		count, err := r.primary.CountContentByKey(ctx, rec.FileKey)
		if err != nil {
			r.logger.Error("Failed to check primary store for existing key",
				zap.Error(err),
				zap.String("file_key", rec.FileKey),
			)
			return Failed
		}
		if count > 0 {
			target = r.secondary
			targetName = "secondary"
		}
	}

	err := target.InsertContent(ctx, rec)
	if errors.Is(err, storage.ErrDuplicate) {
		r.logger.Info("Duplicate content registration",
			zap.String("file_key", rec.FileKey),
			zap.String("store", targetName),
		)
		return Duplicate
	}
	if err != nil {
		r.logger.Error("Failed to register content",
			zap.Error(err),
			zap.String("file_key", rec.FileKey),
			zap.String("store", targetName),
		)
		return Failed
	}

	r.logger.Info("Content registered",
		zap.String("file_key", rec.FileKey),
		zap.String("file_name", rec.FileName),
		zap.String("store", targetName),
		zap.String("batch", rec.BatchName),
	)
	return Created
}

// Resolve maps a navigation path to a stored record. It returns the first
// matching active record from the primary store, falling back to the
// secondary; (nil, nil) means no content exists for the path, a non-nil
// error means the backends could not answer.
func (r *Registry) Resolve(ctx context.Context, filter storage.ContentFilter) (*models.ContentRecord, error) {
	rec, err := r.primary.FindContent(ctx, filter)
	if err == nil && rec != nil {
		return rec, nil
	}
	if err != nil {
		r.logger.Error("Primary store lookup failed", zap.Error(err))
		if r.secondary == nil {
			return nil, err
		}
	}

	if r.secondary == nil {
		return nil, nil
	}

	rec, serr := r.secondary.FindContent(ctx, filter)
	if serr != nil {
		r.logger.Error("Secondary store lookup failed", zap.Error(serr))
		if err != nil {
			return nil, err
		}
		return nil, serr
	}
	return rec, nil
}

// Search queries every enabled store, merges the results, deduplicates by
// stable key and truncates to limit. Store failures degrade to whatever the
// other store returned.
func (r *Registry) Search(ctx context.Context, query string, limit int64) []models.ContentRecord {
	var merged []models.ContentRecord
	seen := make(map[string]bool)

	stores := []storage.ContentStore{r.primary}
	if r.secondary != nil {
		stores = append(stores, r.secondary)
	}

	for _, store := range stores {
		records, err := store.SearchContent(ctx, query, limit)
		if err != nil {
			r.logger.Error("Content search failed", zap.Error(err), zap.String("query", query))
			continue
		}
		for _, rec := range records {
			if seen[rec.FileKey] {
				continue
			}
			seen[rec.FileKey] = true
			merged = append(merged, rec)
			if limit > 0 && int64(len(merged)) >= limit {
				return merged
			}
		}
	}
	return merged
}

// DeleteByKey deletes by exact stable key in each enabled store. Returns
// true if any store removed at least one record.
func (r *Registry) DeleteByKey(ctx context.Context, fileKey string) bool {
	var deleted int64
	for _, store := range r.stores() {
		n, err := store.DeleteContentByKey(ctx, fileKey)
		if err != nil {
			r.logger.Error("Failed to delete content by key", zap.Error(err), zap.String("file_key", fileKey))
			continue
		}
		deleted += n
	}
	return deleted > 0
}

// DeleteFile removes the record for an uploaded file: first by exact stable
// key, then by the looser (file_name, file_size, mime_type) match, trying
// the sanitized name before the original one.
func (r *Registry) DeleteFile(ctx context.Context, meta models.FileMeta) bool {
	if r.DeleteByKey(ctx, StableKey(meta)) {
		return true
	}

	for _, name := range []string{SanitizeFileName(meta.FileName), meta.FileName} {
		var deleted int64
		for _, store := range r.stores() {
			n, err := store.DeleteContentByFile(ctx, name, meta.FileSize, meta.MimeType)
			if err != nil {
				r.logger.Error("Failed to delete content by file attributes",
					zap.Error(err), zap.String("file_name", name))
				continue
			}
			deleted += n
		}
		if deleted > 0 {
			return true
		}
	}
	return false
}

// DeleteByNamePattern removes records whose file name contains the pattern,
// across all enabled stores.
func (r *Registry) DeleteByNamePattern(ctx context.Context, pattern string) int64 {
	var deleted int64
	for _, store := range r.stores() {
		n, err := store.DeleteContentByNamePattern(ctx, pattern)
		if err != nil {
			r.logger.Error("Failed to delete content by pattern", zap.Error(err), zap.String("pattern", pattern))
			continue
		}
		deleted += n
	}
	return deleted
}

// DeleteBatchContent cascades a batch deletion: every record classified
// under the batch is removed from every enabled store.
func (r *Registry) DeleteBatchContent(ctx context.Context, batchName string) int64 {
	var deleted int64
	for _, store := range r.stores() {
		n, err := store.DeleteContentByBatch(ctx, batchName)
		if err != nil {
			r.logger.Error("Failed to cascade batch delete", zap.Error(err), zap.String("batch", batchName))
			continue
		}
		deleted += n
	}
	return deleted
}

// Counts returns the record count per enabled store. A failing store counts
// as zero and is logged.
func (r *Registry) Counts(ctx context.Context) (primary, secondary int64) {
	var err error
	primary, err = r.primary.CountContent(ctx)
	if err != nil {
		r.logger.Error("Failed to count primary store", zap.Error(err))
	}
	if r.secondary != nil {
		secondary, err = r.secondary.CountContent(ctx)
		if err != nil {
			r.logger.Error("Failed to count secondary store", zap.Error(err))
		}
	}
	return primary, secondary
}

func (r *Registry) stores() []storage.ContentStore {
	if r.secondary != nil {
		return []storage.ContentStore{r.primary, r.secondary}
	}
	return []storage.ContentStore{r.primary}
}
