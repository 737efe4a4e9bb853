package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const maxUpdateAttempts = 5

// RateLimitStorage implements the RateLimitStorage interface for Badger
type RateLimitStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRateLimitStorage creates a new RateLimitStorage instance
func NewRateLimitStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RateLimitStorage {
	return &RateLimitStorage{
		db:     db,
		logger: logger,
	}
}

// GetState returns the stored state, or a zero state keyed by key when none exists
func (s *RateLimitStorage) GetState(ctx context.Context, key string) (*models.RateLimitState, error) {
	var state models.RateLimitState
	if err := s.db.Store().Get(key, &state); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return &models.RateLimitState{Key: key}, nil
		}
		return nil, fmt.Errorf("failed to get rate limit state: %w", err)
	}
	return &state, nil
}

// UpdateState runs read-modify-write inside a badger transaction.
// Concurrent writers surface as badger.ErrConflict and are retried.
func (s *RateLimitStorage) UpdateState(ctx context.Context, key string, fn func(state *models.RateLimitState) error) (*models.RateLimitState, error) {
	store := s.db.Store()

	var result models.RateLimitState
	err := s.db.UpdateWithRetry(ctx, maxUpdateAttempts, func(tx *badger.Txn) error {
		state := models.RateLimitState{Key: key}
		if err := store.TxGet(tx, key, &state); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}
		if err := fn(&state); err != nil {
			return err
		}
		state.Key = key
		result = state
		return store.TxUpsert(tx, key, &state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update rate limit state %s: %w", key, err)
	}

	return &result, nil
}
