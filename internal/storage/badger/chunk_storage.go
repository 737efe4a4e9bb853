package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChunkStorage implements the ChunkStorage interface for Badger
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ChunkStorage) ExistingHashes(ctx context.Context, hashes []string) (map[string]string, error) {
	existing := make(map[string]string)
	if len(hashes) == 0 {
		return existing, nil
	}

	values := make([]interface{}, len(hashes))
	for i, h := range hashes {
		values[i] = h
	}

	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, badgerhold.Where("ContentHash").In(values...).Index("ContentHash")); err != nil {
		return nil, fmt.Errorf("failed to look up chunk hashes: %w", err)
	}

	for _, c := range chunks {
		existing[c.ContentHash] = c.ID
	}
	return existing, nil
}

// SaveChunks writes all chunks and links in one badger transaction so a
// failure leaves no partial chunk set behind.
func (s *ChunkStorage) SaveChunks(ctx context.Context, chunks []*models.Chunk, links []*models.DocumentChunk) error {
	_, err := s.commit(ctx, nil, chunks, links)
	return err
}

func (s *ChunkStorage) CommitDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk, links []*models.DocumentChunk) (*models.ChunkCommit, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("document ID is required")
	}
	return s.commit(ctx, doc, chunks, links)
}

// commit re-checks content hashes inside the transaction. Two writers racing
// on the same content conflict on the ContentHash index; the loser retries,
// finds the winner's chunk and links to it.
func (s *ChunkStorage) commit(ctx context.Context, doc *models.Document, chunks []*models.Chunk, links []*models.DocumentChunk) (*models.ChunkCommit, error) {
	if doc == nil && len(chunks) == 0 && len(links) == 0 {
		return &models.ChunkCommit{}, nil
	}

	store := s.db.Store()
	now := time.Now()
	for _, c := range chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("chunk ID is required")
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
	}
	for _, l := range links {
		if l.ID == "" {
			l.ID = models.DocumentChunkKey(l.DocumentID, l.ChunkID)
		}
	}

	var result models.ChunkCommit
	var committed *models.Document

	err := s.db.UpdateWithRetry(ctx, maxUpdateAttempts, func(tx *badger.Txn) error {
		result = models.ChunkCommit{}

		existing, err := s.txExistingHashes(tx, chunks)
		if err != nil {
			return err
		}

		// chunk ID -> stored chunk ID carrying the same content
		remap := make(map[string]string)
		for _, c := range chunks {
			if ownerID, ok := existing[c.ContentHash]; ok && ownerID != c.ID {
				remap[c.ID] = ownerID
				result.Deduplicated++
				continue
			}
			if err := store.TxInsert(tx, c.ID, c); err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.ID, err)
			}
			result.Inserted++
		}

		for _, l := range links {
			link := l
			if ownerID, ok := remap[l.ChunkID]; ok {
				link = &models.DocumentChunk{
					ID:         models.DocumentChunkKey(l.DocumentID, ownerID),
					DocumentID: l.DocumentID,
					ChunkID:    ownerID,
					Position:   l.Position,
				}
			}
			if err := store.TxUpsert(tx, link.ID, link); err != nil {
				return fmt.Errorf("insert link %s: %w", link.ID, err)
			}
		}

		if doc != nil {
			final := *doc
			final.Status = models.DocumentStatusComplete
			final.ChunkCount = result.Inserted
			final.SkippedDuplicates = doc.SkippedDuplicates + result.Deduplicated
			final.UpdatedAt = now
			if err := store.TxUpsert(tx, final.ID, &final); err != nil {
				return fmt.Errorf("complete document %s: %w", final.ID, err)
			}
			committed = &final
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save chunks: %w", err)
	}

	if committed != nil {
		*doc = *committed
	}

	s.logger.Debug().
		Int("chunks", result.Inserted).
		Int("deduplicated", result.Deduplicated).
		Int("links", len(links)).
		Msg("Chunks committed")

	return &result, nil
}

// txExistingHashes is ExistingHashes read inside tx
func (s *ChunkStorage) txExistingHashes(tx *badger.Txn, chunks []*models.Chunk) (map[string]string, error) {
	existing := make(map[string]string)
	if len(chunks) == 0 {
		return existing, nil
	}

	values := make([]interface{}, len(chunks))
	for i, c := range chunks {
		values[i] = c.ContentHash
	}

	var stored []models.Chunk
	query := badgerhold.Where("ContentHash").In(values...).Index("ContentHash")
	if err := s.db.Store().TxFind(tx, &stored, query); err != nil {
		return nil, fmt.Errorf("failed to look up chunk hashes: %w", err)
	}
	for _, c := range stored {
		existing[c.ContentHash] = c.ID
	}
	return existing, nil
}

func (s *ChunkStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	if err := s.db.Store().Get(id, &chunk); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &chunk, nil
}

// GetChunksByDocument returns every chunk linked to the document, in position order
func (s *ChunkStorage) GetChunksByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	var links []models.DocumentChunk
	query := badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").SortBy("Position")
	if err := s.db.Store().Find(&links, query); err != nil {
		return nil, fmt.Errorf("failed to find document links: %w", err)
	}

	chunks := make([]*models.Chunk, 0, len(links))
	for _, l := range links {
		chunk, err := s.GetChunk(ctx, l.ChunkID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (s *ChunkStorage) CountChunks(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

func (s *ChunkStorage) DeleteLinksByDocument(ctx context.Context, documentID string) error {
	err := s.db.Store().DeleteMatching(&models.DocumentChunk{}, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
	if err != nil {
		return fmt.Errorf("failed to delete document links: %w", err)
	}
	return nil
}
