package handlers

import (
	"context"

	"github.com/ternarybob/yojana/internal/models"
)

// QueryAnswerer answers questions and recommends schemes
type QueryAnswerer interface {
	Query(ctx context.Context, req models.QueryRequest) *models.QueryResponse
	SearchSchemes(ctx context.Context, req models.SchemeSearchRequest) *models.SchemeSearchResponse
}

// DocumentIngester ingests and manages source documents
type DocumentIngester interface {
	Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestionResult, error)
	Archive(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, error)
	DocumentChunks(ctx context.Context, id string) ([]*models.Chunk, error)
}

// QuotaReporter reports monthly usage of external services
type QuotaReporter interface {
	Statuses(ctx context.Context) []models.QuotaStatus
}

// StoreCounter reports corpus size for health checks
type StoreCounter interface {
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	CountEntries(ctx context.Context) (int, error)
}
