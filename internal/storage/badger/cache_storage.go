package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CacheStorage implements the CacheStorage interface for Badger
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// Nearest returns the most similar entry recorded for the same language, or nil when none exist
func (s *CacheStorage) Nearest(ctx context.Context, vector []float32, language string) (*models.CacheMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}

	var best *models.CacheMatch
	query := badgerhold.Where("Language").Eq(language).Index("Language")

	err := s.db.Store().ForEach(query, func(entry *models.CacheEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sim := cosineSimilarity(vector, entry.Embedding)
		if best == nil || sim > best.Similarity {
			best = &models.CacheMatch{Entry: entry, Similarity: sim}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	return best, nil
}

func (s *CacheStorage) SaveEntry(ctx context.Context, entry *models.CacheEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("cache entry ID is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) IncrementHit(ctx context.Context, id string) error {
	var entry models.CacheEntry
	if err := s.db.Store().Get(id, &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("cache entry %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry.HitCount++
	entry.LastHitAt = time.Now()

	if err := s.db.Store().Update(id, &entry); err != nil {
		return fmt.Errorf("failed to update cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) CountEntries(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CacheEntry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return int(count), nil
}
