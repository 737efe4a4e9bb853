// -----------------------------------------------------------------------
// Last Modified: Tuesday, 13th October 2026 10:42:11 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/yojana/internal/models"
)

// DocumentStorage - interface for document record persistence
type DocumentStorage interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocuments(ctx context.Context, ids []string) (map[string]*models.Document, error)
	ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int, error)
	SetActive(ctx context.Context, id string, active bool) error
	DeleteDocument(ctx context.Context, id string) error

	// ListPendingBefore returns documents whose chunk commit never completed
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error)
}

// ChunkStorage - interface for chunk persistence and hybrid retrieval
type ChunkStorage interface {
	// ExistingHashes returns the subset of hashes already stored, mapped to the owning chunk ID
	ExistingHashes(ctx context.Context, hashes []string) (map[string]string, error)

	// SaveChunks commits chunks and document links in a single transaction.
	// A chunk whose content hash is already stored is linked, not inserted.
	SaveChunks(ctx context.Context, chunks []*models.Chunk, links []*models.DocumentChunk) error

	// CommitDocument is SaveChunks plus flipping doc to complete in the same
	// transaction, with ChunkCount and SkippedDuplicates reflecting the commit
	CommitDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk, links []*models.DocumentChunk) (*models.ChunkCommit, error)

	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error)
	CountChunks(ctx context.Context) (int, error)
	DeleteLinksByDocument(ctx context.Context, documentID string) error

	// HybridSearch ranks eligible chunks by fused semantic and keyword relevance.
	// Chunks below MinSimilarity are excluded; results are sorted by FinalScore.
	HybridSearch(ctx context.Context, query models.HybridQuery) ([]models.RetrievedChunk, error)
}

// CacheStorage - interface for semantic cache entries
type CacheStorage interface {
	Nearest(ctx context.Context, vector []float32, language string) (*models.CacheMatch, error)
	SaveEntry(ctx context.Context, entry *models.CacheEntry) error
	IncrementHit(ctx context.Context, id string) error
	CountEntries(ctx context.Context) (int, error)
}

// UsageStorage - interface for append-only usage rows
type UsageStorage interface {
	AppendUsage(ctx context.Context, record *models.UsageRecord) error
	SumUsage(ctx context.Context, service, month string) (float64, error)
}

// RateLimitStorage - interface for the shared throughput counter
type RateLimitStorage interface {
	GetState(ctx context.Context, key string) (*models.RateLimitState, error)

	// UpdateState applies fn to the current state inside one transaction and
	// persists the result. fn receives a zero state when none exists.
	UpdateState(ctx context.Context, key string, fn func(state *models.RateLimitState) error) (*models.RateLimitState, error)
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	DocumentStorage() DocumentStorage
	ChunkStorage() ChunkStorage
	CacheStorage() CacheStorage
	UsageStorage() UsageStorage
	RateLimitStorage() RateLimitStorage
	Close() error
}
