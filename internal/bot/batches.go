package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"studybot/internal/models"
	"studybot/internal/storage"
)

// ensureBatch returns the batch by name, lazily creating it with the
// configured default subjects and teachers the first time anyone references
// it. Results pass through the timestamp-gated cache.
func (b *Bot) ensureBatch(ctx context.Context, name string, userID int64) (*models.Batch, error) {
	if batch := b.cachedBatch(name); batch != nil {
		return batch, nil
	}

	batch, err := b.db.GetBatch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up batch: %w", err)
	}

	if batch == nil {
		batch = &models.Batch{
			Name:      name,
			Subjects:  b.cfg.DefaultSubjects,
			Teachers:  b.cfg.DefaultTeachers,
			IsActive:  true,
			CreatedBy: userID,
			CreatedAt: time.Now().UTC(),
		}
		err := b.db.CreateBatch(ctx, batch)
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost a creation race; the stored one wins.
			batch, err = b.db.GetBatch(ctx, name)
			if err != nil || batch == nil {
				return nil, fmt.Errorf("failed to reload batch after race: %w", err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to create batch: %w", err)
		} else {
			b.logger.Info("Batch auto-created",
				zap.String("batch", name),
				zap.Int64("user_id", userID),
			)
		}
	}

	b.storeBatchInCache(batch)
	return batch, nil
}

func (b *Bot) cachedBatch(name string) *models.Batch {
	b.batchCacheMu.Lock()
	defer b.batchCacheMu.Unlock()

	entry, ok := b.batchCache[name]
	if !ok || time.Since(entry.cachedAt) > batchCacheTTL {
		return nil
	}
	return entry.batch
}

func (b *Bot) storeBatchInCache(batch *models.Batch) {
	b.batchCacheMu.Lock()
	defer b.batchCacheMu.Unlock()
	b.batchCache[batch.Name] = batchCacheEntry{batch: batch, cachedAt: time.Now()}
}

func (b *Bot) dropBatchFromCache(name string) {
	b.batchCacheMu.Lock()
	defer b.batchCacheMu.Unlock()
	delete(b.batchCache, name)
}
