// Package retrieval finds the chunks relevant to a question and rates how far
// they can be trusted.
package retrieval

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// Retriever runs hybrid search over the chunk store
type Retriever struct {
	chunks        interfaces.ChunkStorage
	embedder      interfaces.EmbeddingService
	topK          int
	minSimilarity float64
	rrfK          float64
	logger        arbor.ILogger
}

// NewRetriever creates a retriever with top-N and minimum similarity from config
func NewRetriever(chunks interfaces.ChunkStorage, embedder interfaces.EmbeddingService, config *common.RetrievalConfig, logger arbor.ILogger) *Retriever {
	topK := config.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		chunks:        chunks,
		embedder:      embedder,
		topK:          topK,
		minSimilarity: config.MinSimilarity,
		rrfK:          config.RRFK,
		logger:        logger,
	}
}

// Retrieve embeds the query and returns up to top-N chunks above the similarity floor.
// No matches is an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.RetrievedChunk, error) {
	return r.RetrieveN(ctx, query, r.topK)
}

// RetrieveN is Retrieve with an explicit result count
func (r *Retriever) RetrieveN(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.RetrieveWithVector(ctx, query, vector, limit)
}

// RetrieveWithVector skips embedding, reusing a vector computed for the cache lookup
func (r *Retriever) RetrieveWithVector(ctx context.Context, query string, vector []float32, limit int) ([]models.RetrievedChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("retrieval requires a query vector: %w", models.ErrEmptyEmbedding)
	}
	if limit <= 0 {
		limit = r.topK
	}

	results, err := r.chunks.HybridSearch(ctx, models.HybridQuery{
		Vector:        vector,
		Text:          query,
		Limit:         limit,
		MinSimilarity: r.minSimilarity,
		RRFK:          r.rrfK,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	event := r.logger.Debug().Int("results", len(results))
	if len(results) > 0 {
		event = event.Float64("top_semantic", results[0].SemanticScore)
	}
	event.Msg("Retrieval completed")

	return results, nil
}

// TopK returns the default result count
func (r *Retriever) TopK() int {
	return r.topK
}
