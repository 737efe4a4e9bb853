package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// Event stages published while a document is ingested
const (
	StageExtracted = "extracted"
	StageChunked   = "chunked"
	StageEmbedded  = "embedded"
	StageStored    = "stored"
	StageFailed    = "failed"
)

const defaultDocumentType = "scheme"

// Service runs extract -> chunk -> write for one document at a time
type Service struct {
	extractor interfaces.TextExtractor
	chunker   interfaces.Chunker
	writer    *Writer
	documents interfaces.DocumentStorage
	chunks    interfaces.ChunkStorage
	events    interfaces.IngestionEventPublisher
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewService creates the ingestion orchestrator. events may be nil.
func NewService(
	extractor interfaces.TextExtractor,
	chunker interfaces.Chunker,
	writer *Writer,
	storage interfaces.StorageManager,
	events interfaces.IngestionEventPublisher,
	logger arbor.ILogger,
) *Service {
	return &Service{
		extractor: extractor,
		chunker:   chunker,
		writer:    writer,
		documents: storage.DocumentStorage(),
		chunks:    storage.ChunkStorage(),
		events:    events,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Ingest extracts, chunks, embeds and stores one document.
// A quota-limited partial ingest returns both the result and a
// *models.PartialIngestionError.
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestionResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: %s has no content", models.ErrInvalidRequest, req.Filename)
	}

	start := time.Now()
	s.logger.Info().
		Str("filename", req.Filename).
		Int("bytes", len(req.Data)).
		Msg("Ingesting document")

	extraction, err := s.extractor.Extract(ctx, models.ExtractRequest{
		Filename:      req.Filename,
		ContentType:   req.ContentType,
		Data:          req.Data,
		LanguageHints: req.LanguageHints,
	})
	if err != nil {
		s.fail(req.Filename, "extract", err)
		return nil, err
	}
	s.publish(StageExtracted, req.Filename, map[string]interface{}{
		"method":       extraction.Method,
		"page_count":   extraction.PageCount,
		"language":     extraction.Language,
		"characters":   len([]rune(extraction.Text)),
		"credits_used": extraction.CreditsUsed,
	})

	drafts := s.chunker.Chunk(models.ChunkInput{
		Text:             extraction.Text,
		Format:           extraction.Format,
		PageCount:        extraction.PageCount,
		ExtractionMethod: extraction.Method,
		Language:         extraction.Language,
	})
	s.publish(StageChunked, req.Filename, map[string]interface{}{
		"chunks": len(drafts),
	})

	doc := &models.Document{
		ID:                   common.NewDocumentID(),
		Title:                documentTitle(req, extraction),
		Type:                 req.Type,
		SourceURL:            req.SourceURL,
		ExtractionMethod:     extraction.Method,
		ExtractionConfidence: extraction.Confidence,
		ReferenceNumber:      req.ReferenceNumber,
		ReferenceDate:        req.ReferenceDate,
		Language:             extraction.Language,
		PageCount:            extraction.PageCount,
		CreditsUsed:          extraction.CreditsUsed,
		Active:               true,
	}
	if doc.Type == "" {
		doc.Type = defaultDocumentType
	}

	written, err := s.writer.Write(ctx, doc, drafts, func(embedded, total int) {
		s.publish(StageEmbedded, req.Filename, map[string]interface{}{
			"embedded": embedded,
			"total":    total,
		})
	})

	var partial *models.PartialIngestionError
	if err != nil && (!errors.As(err, &partial) || written == nil) {
		s.fail(req.Filename, "write", err)
		return nil, err
	}

	result := &models.IngestionResult{
		DocumentID:         written.DocumentID,
		ChunkCount:         written.ChunkCount,
		SkippedDuplicates:  written.SkippedDuplicates,
		ExtractionMethod:   extraction.Method,
		Language:           extraction.Language,
		CreditsUsed:        extraction.CreditsUsed,
		EmbeddingCallsUsed: written.EmbeddingCalls,
	}

	s.publish(StageStored, req.Filename, map[string]interface{}{
		"document_id":        result.DocumentID,
		"chunk_count":        result.ChunkCount,
		"skipped_duplicates": result.SkippedDuplicates,
		"partial":            partial != nil,
	})

	s.logger.Info().
		Str("document_id", result.DocumentID).
		Str("filename", req.Filename).
		Str("method", string(result.ExtractionMethod)).
		Str("language", result.Language).
		Int("chunks", result.ChunkCount).
		Int("skipped", result.SkippedDuplicates).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Document ingested")

	if partial != nil {
		return result, partial
	}
	return result, nil
}

// Archive excludes a document from retrieval without deleting it
func (s *Service) Archive(ctx context.Context, id string) error {
	if err := s.documents.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Str("document_id", id).Msg("Document archived")
	return nil
}

// Restore makes an archived document retrievable again
func (s *Service) Restore(ctx context.Context, id string) error {
	if err := s.documents.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.logger.Info().Str("document_id", id).Msg("Document restored")
	return nil
}

func (s *Service) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.documents.GetDocument(ctx, id)
}

func (s *Service) ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, error) {
	return s.documents.ListDocuments(ctx, filter)
}

// DocumentChunks returns every chunk linked to a document, shared ones included
func (s *Service) DocumentChunks(ctx context.Context, id string) ([]*models.Chunk, error) {
	if _, err := s.documents.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.chunks.GetChunksByDocument(ctx, id)
}

func (s *Service) fail(filename, stage string, err error) {
	s.logger.Error().Err(err).Str("filename", filename).Str("stage", stage).Msg("Ingestion failed")
	s.publish(StageFailed, filename, map[string]interface{}{
		"stage": stage,
		"error": err.Error(),
	})
}

func (s *Service) publish(stage, filename string, details map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.IngestionEvent{
		Stage:     stage,
		Filename:  filename,
		Details:   details,
		Timestamp: time.Now(),
	})
}

// documentTitle prefers the caller's title, then one found in the content, then the file name
func documentTitle(req models.IngestRequest, extraction *models.Extraction) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(extraction.Title); t != "" {
		return t
	}
	base := filepath.Base(req.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
