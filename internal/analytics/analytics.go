package analytics

import (
	"context"

	"studybot/internal/models"
)

// Sink receives delivery events and answers aggregate queries. Writes are
// best-effort: they are not atomic with the document-store mutation, and a
// failed write only costs a statistics row.
type Sink interface {
	RecordDelivery(ctx context.Context, event models.DeliveryEvent) error
	TotalDeliveries(ctx context.Context) (uint64, error)
	TopContent(ctx context.Context, limit int) ([]models.ContentStat, error)
	Close() error
}

// Nop is the sink used when analytics is disabled.
type Nop struct{}

func (Nop) RecordDelivery(ctx context.Context, event models.DeliveryEvent) error {
	return nil
}

func (Nop) TotalDeliveries(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (Nop) TopContent(ctx context.Context, limit int) ([]models.ContentStat, error) {
	return nil, nil
}

func (Nop) Close() error {
	return nil
}
