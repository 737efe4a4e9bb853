package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	document  interfaces.DocumentStorage
	chunk     interfaces.ChunkStorage
	cache     interfaces.CacheStorage
	usage     interfaces.UsageStorage
	rateLimit interfaces.RateLimitStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:        db,
		document:  NewDocumentStorage(db, logger),
		chunk:     NewChunkStorage(db, logger),
		cache:     NewCacheStorage(db, logger),
		usage:     NewUsageStorage(db, logger),
		rateLimit: NewRateLimitStorage(db, logger),
		logger:    logger,
	}
}

// DocumentStorage returns the Document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// ChunkStorage returns the Chunk storage interface
func (m *Manager) ChunkStorage() interfaces.ChunkStorage {
	return m.chunk
}

// CacheStorage returns the semantic cache storage interface
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// UsageStorage returns the usage record storage interface
func (m *Manager) UsageStorage() interfaces.UsageStorage {
	return m.usage
}

// RateLimitStorage returns the rate limit state storage interface
func (m *Manager) RateLimitStorage() interfaces.RateLimitStorage {
	return m.rateLimit
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Info().Msg("Closing Badger storage")
	return m.db.Close()
}
