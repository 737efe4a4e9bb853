package interfaces

import (
	"context"

	"github.com/ternarybob/yojana/internal/models"
)

// TextExtractor turns an uploaded file into text, falling back to OCR
type TextExtractor interface {
	Extract(ctx context.Context, req models.ExtractRequest) (*models.Extraction, error)
}

// Chunker splits extracted text into embedding-sized drafts
type Chunker interface {
	Chunk(input models.ChunkInput) []models.ChunkDraft
}
