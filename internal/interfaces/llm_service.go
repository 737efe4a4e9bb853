package interfaces

import (
	"context"

	"github.com/ternarybob/yojana/internal/models"
)

// EmbeddingTask distinguishes query-side from document-side embeddings.
// Retrieval models embed the two asymmetrically.
type EmbeddingTask string

const (
	EmbeddingTaskQuery    EmbeddingTask = "RETRIEVAL_QUERY"
	EmbeddingTaskDocument EmbeddingTask = "RETRIEVAL_DOCUMENT"
)

// EmbeddingService converts text into fixed-dimension vectors
type EmbeddingService interface {
	// EmbedQuery embeds a single search query
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of document chunks in one call.
	// len(texts) must not exceed MaxBatchSize.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// MaxBatchSize is the largest batch one call accepts
	MaxBatchSize() int
}

// GenerationService produces completions and counts prompt tokens precisely
type GenerationService interface {
	Generate(ctx context.Context, prompt string) (*models.Generation, error)
	CountTokens(ctx context.Context, prompt string) (int, error)
	Model() string
}

// TokenCounter is the precise counting half of GenerationService
type TokenCounter interface {
	CountTokens(ctx context.Context, prompt string) (int, error)
}
