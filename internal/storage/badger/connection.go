package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB owns the badgerhold store shared by every storage type
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// NewBadgerDB opens the store at config.Path, wiping it first when
// reset_on_startup is set.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Warn().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // arbor handles logging

	store, err := badgerhold.Open(options)
	if err != nil {
		logger.Error().Err(err).Str("path", config.Path).Msg("Failed to open badger database")
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database opened")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Update runs fn in a single read-write transaction. Either every write in
// fn commits or none do.
func (b *BadgerDB) Update(fn func(tx *badger.Txn) error) error {
	return b.store.Badger().Update(fn)
}

// UpdateWithRetry is Update for read-modify-write callers. A transaction that
// loses a race with a concurrent writer fails with badger.ErrConflict and is
// re-run from scratch, up to attempts times.
func (b *BadgerDB) UpdateWithRetry(ctx context.Context, attempts int, fn func(tx *badger.Txn) error) error {
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := b.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		b.logger.Debug().Int("attempt", attempt).Msg("Transaction conflict, retrying")
	}

	return fmt.Errorf("transaction failed after %d attempts: %w", attempts, badger.ErrConflict)
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
