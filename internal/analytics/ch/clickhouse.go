package ch

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"studybot/internal/models"
)

// ClickHouseSink writes delivery events to ClickHouse and serves the
// aggregate queries behind the admin /stats command.
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink creates a new ClickHouse connection for analytics.
func NewClickHouseSink(host string, port int, database, user, password string, useTLS bool) (*ClickHouseSink, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

// RecordDelivery inserts one delivery event. The table is managed via
// migrations (see migrations/ directory).
func (s *ClickHouseSink) RecordDelivery(ctx context.Context, event models.DeliveryEvent) error {
	err := s.conn.Exec(ctx, `
		INSERT INTO delivery_events
			(user_id, batch_name, subject, teacher, chapter_no, content_type, item_id, file_key, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.UserID, event.BatchName, event.Subject, event.Teacher,
		event.ChapterNo, event.ContentType, event.ItemID, event.FileKey,
		event.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery event: %w", err)
	}
	return nil
}

// TotalDeliveries counts all recorded deliveries.
func (s *ClickHouseSink) TotalDeliveries(ctx context.Context) (uint64, error) {
	row := s.conn.QueryRow(ctx, `SELECT count() FROM delivery_events`)
	var total uint64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return total, nil
}

// TopContent returns the most-delivered (batch, subject, content type)
// groups, busiest first.
func (s *ClickHouseSink) TopContent(ctx context.Context, limit int) ([]models.ContentStat, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT batch_name, subject, content_type, count() AS deliveries
		FROM delivery_events
		GROUP BY batch_name, subject, content_type
		ORDER BY deliveries DESC, batch_name, subject
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top content: %w", err)
	}
	defer rows.Close()

	var stats []models.ContentStat
	for rows.Next() {
		var stat models.ContentStat
		if err := rows.Scan(&stat.BatchName, &stat.Subject, &stat.ContentType, &stat.Deliveries); err != nil {
			return nil, fmt.Errorf("failed to scan content stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Close closes the ClickHouse connection.
func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
