package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// UsageStorage implements the UsageStorage interface for Badger
type UsageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewUsageStorage creates a new UsageStorage instance
func NewUsageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.UsageStorage {
	return &UsageStorage{
		db:     db,
		logger: logger,
	}
}

func (s *UsageStorage) AppendUsage(ctx context.Context, record *models.UsageRecord) error {
	if record.ID == "" {
		return fmt.Errorf("usage record ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.Month == "" {
		record.Month = models.MonthBucket(record.CreatedAt)
	}

	if err := s.db.Store().Insert(record.ID, record); err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}
	return nil
}

// SumUsage totals the units recorded for a service in a YYYY-MM bucket
func (s *UsageStorage) SumUsage(ctx context.Context, service, month string) (float64, error) {
	total := 0.0
	query := badgerhold.Where("Month").Eq(month).Index("Month").And("Service").Eq(service)

	err := s.db.Store().ForEach(query, func(r *models.UsageRecord) error {
		total += r.Units
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}
