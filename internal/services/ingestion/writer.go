package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// WriteResult summarises one document write
type WriteResult struct {
	DocumentID        string
	ChunkCount        int
	SkippedDuplicates int
	EmbeddingCalls    int
}

// ProgressFunc is called after every embedded batch
type ProgressFunc func(embedded, total int)

// Writer hashes, deduplicates, embeds and stores chunk drafts under a document
type Writer struct {
	documents interfaces.DocumentStorage
	chunks    interfaces.ChunkStorage
	embedder  interfaces.EmbeddingService
	quota     interfaces.QuotaService
	batchSize int
	logger    arbor.ILogger
}

// NewWriter creates a writer. batchSize is capped at the embedder's maximum.
func NewWriter(
	documents interfaces.DocumentStorage,
	chunks interfaces.ChunkStorage,
	embedder interfaces.EmbeddingService,
	quota interfaces.QuotaService,
	batchSize int,
	logger arbor.ILogger,
) *Writer {
	if max := embedder.MaxBatchSize(); max > 0 && (batchSize <= 0 || batchSize > max) {
		batchSize = max
	}
	if batchSize <= 0 {
		batchSize = 20
	}

	return &Writer{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		quota:     quota,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ContentHash is the store-wide dedup key of a chunk
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type pendingChunk struct {
	draft models.ChunkDraft
	hash  string
}

// Write stores doc and the chunks of drafts not already present anywhere in the store.
//
// New drafts are embedded in sequential batches, each preceded by an embedding
// quota check. When the quota runs out part way, the embedded batches are still
// stored and a *models.PartialIngestionError is returned alongside the result.
// If the quota is exhausted before anything could be stored, the result is nil.
// Chunks, links and the document's completion commit in one transaction; if
// that fails the document row is deleted again. Content committed by a
// concurrent writer in the meantime is linked rather than stored twice.
func (w *Writer) Write(ctx context.Context, doc *models.Document, drafts []models.ChunkDraft, progress ProgressFunc) (*WriteResult, error) {
	result := &WriteResult{DocumentID: doc.ID}

	hashes := make([]string, 0, len(drafts))
	seen := make(map[string]bool, len(drafts))
	unique := make([]pendingChunk, 0, len(drafts))
	for _, d := range drafts {
		h := ContentHash(d.Text)
		if seen[h] {
			result.SkippedDuplicates++
			continue
		}
		seen[h] = true
		hashes = append(hashes, h)
		unique = append(unique, pendingChunk{draft: d, hash: h})
	}

	existing, err := w.chunks.ExistingHashes(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}

	var links []*models.DocumentChunk
	fresh := make([]pendingChunk, 0, len(unique))
	for _, p := range unique {
		if chunkID, ok := existing[p.hash]; ok {
			result.SkippedDuplicates++
			links = append(links, &models.DocumentChunk{
				DocumentID: doc.ID,
				ChunkID:    chunkID,
				Position:   p.draft.Position,
			})
			continue
		}
		fresh = append(fresh, p)
	}

	embedded, partial, err := w.embedBatches(ctx, doc.ID, fresh, result, progress)
	if err != nil {
		return nil, err
	}
	if partial != nil && len(embedded) == 0 && len(links) == 0 {
		// Nothing to store; no document row is created.
		partial.DocumentID = ""
		return nil, partial
	}

	chunks := make([]*models.Chunk, 0, len(embedded))
	now := time.Now()
	for _, e := range embedded {
		chunk := &models.Chunk{
			ID:               common.NewChunkID(),
			DocumentID:       doc.ID,
			Text:             e.draft.Text,
			ContentHash:      e.hash,
			Section:          e.draft.Section,
			Page:             e.draft.Page,
			Language:         e.draft.Language,
			ExtractionMethod: e.draft.ExtractionMethod,
			Position:         e.draft.Position,
			TokenCount:       e.draft.TokenCount,
			Embedding:        e.vector,
			CreatedAt:        now,
		}
		chunks = append(chunks, chunk)
		links = append(links, &models.DocumentChunk{
			DocumentID: doc.ID,
			ChunkID:    chunk.ID,
			Position:   chunk.Position,
		})
	}

	doc.Status = models.DocumentStatusPending
	doc.ChunkCount = len(chunks)
	doc.SkippedDuplicates = result.SkippedDuplicates
	if err := w.documents.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	commit, err := w.chunks.CommitDocument(ctx, doc, chunks, links)
	if err != nil {
		w.logger.Error().Err(err).Str("document_id", doc.ID).Msg("Chunk commit failed, removing document")
		if delErr := w.documents.DeleteDocument(context.WithoutCancel(ctx), doc.ID); delErr != nil {
			w.logger.Error().Err(delErr).Str("document_id", doc.ID).Msg("Compensating delete failed; reconcile sweep will remove it")
		}
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	result.ChunkCount = commit.Inserted
	result.SkippedDuplicates += commit.Deduplicated

	w.logger.Info().
		Str("document_id", doc.ID).
		Int("chunks", result.ChunkCount).
		Int("skipped_duplicates", result.SkippedDuplicates).
		Int("embedding_calls", result.EmbeddingCalls).
		Msg("Document written")

	if partial != nil {
		return result, partial
	}
	return result, nil
}

type embeddedChunk struct {
	pendingChunk
	vector []float32
}

// embedBatches embeds fresh chunks strictly sequentially. Quota exhaustion
// stops the loop and returns what was embedded with a partial error.
func (w *Writer) embedBatches(ctx context.Context, docID string, fresh []pendingChunk, result *WriteResult, progress ProgressFunc) ([]embeddedChunk, *models.PartialIngestionError, error) {
	embedded := make([]embeddedChunk, 0, len(fresh))

	for start := 0; start < len(fresh); start += w.batchSize {
		end := start + w.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		batch := fresh[start:end]

		if status := w.quota.Check(ctx, models.ServiceEmbedding); !status.Allowed {
			w.logger.Warn().
				Str("document_id", docID).
				Int("embedded", len(embedded)).
				Int("total", len(fresh)).
				Msg("Embedding quota exhausted mid-document")
			return embedded, &models.PartialIngestionError{
				DocumentID:     docID,
				EmbeddedChunks: len(embedded),
				TotalChunks:    len(fresh),
				Err:            models.ErrQuotaExhausted,
			}, nil
		}

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.draft.Text
		}

		vectors, err := w.embedder.EmbedDocuments(ctx, texts)
		result.EmbeddingCalls++
		w.quota.Record(ctx, models.ServiceEmbedding, models.UsageEmbedCall, 1)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, nil, fmt.Errorf("embedding batch %d-%d returned %d vectors: %w", start, end, len(vectors), models.ErrEmptyEmbedding)
		}

		for i, p := range batch {
			embedded = append(embedded, embeddedChunk{pendingChunk: p, vector: vectors[i]})
		}

		if progress != nil {
			progress(len(embedded), len(fresh))
		}
	}

	return embedded, nil, nil
}
