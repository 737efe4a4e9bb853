package models

import (
	"time"
)

// ExtractionMethod records which extraction tier produced a document's text
type ExtractionMethod string

const (
	ExtractionNative ExtractionMethod = "native"
	ExtractionOCR    ExtractionMethod = "ocr"
)

// DocumentStatus tracks the write lifecycle of a document row.
// A document stays pending between its insert and the commit of its chunks;
// the reconciliation sweep removes documents stuck in pending.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusComplete DocumentStatus = "complete"
)

// Document represents one ingested source file (scheme notification, guideline, FAQ)
type Document struct {
	ID                   string           `json:"id"` // doc_{uuid}
	Title                string           `json:"title"`
	Type                 string           `json:"type"`       // scheme, notification, circular, faq
	SourceURL            string           `json:"source_url"` // Authoritative reference link
	ExtractionMethod     ExtractionMethod `json:"extraction_method"`
	ExtractionConfidence float64          `json:"extraction_confidence"` // 1.0 native, 0.85 ocr
	ReferenceNumber      string           `json:"reference_number,omitempty"`
	ReferenceDate        *time.Time       `json:"reference_date,omitempty"`
	Language             string           `json:"language"`
	PageCount            int              `json:"page_count"`
	ChunkCount           int              `json:"chunk_count"`        // Chunks this document embedded itself
	SkippedDuplicates    int              `json:"skipped_duplicates"` // Chunks already owned by another document
	CreditsUsed          float64          `json:"credits_used"`
	Active               bool             `json:"active" badgerhold:"index"`
	Status               DocumentStatus   `json:"status" badgerhold:"index"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Chunk is a content-addressed fragment of document text.
// ContentHash is unique across the whole store, not per document.
type Chunk struct {
	ID               string           `json:"id"` // chk_{uuid}
	DocumentID       string           `json:"document_id" badgerhold:"index"` // First document that embedded this content
	Text             string           `json:"text"`
	ContentHash      string           `json:"content_hash" badgerhold:"index"` // SHA-256 hex of Text
	Section          string           `json:"section,omitempty"`
	Page             int              `json:"page,omitempty"`
	Language         string           `json:"language"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Position         int              `json:"position"`
	TokenCount       int              `json:"token_count"`
	Embedding        []float32        `json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
}

// DocumentChunk links a document to every chunk its content produced,
// including chunks first embedded by another document.
type DocumentChunk struct {
	ID         string `json:"id"` // {document_id}:{chunk_id}
	DocumentID string `json:"document_id" badgerhold:"index"`
	ChunkID    string `json:"chunk_id" badgerhold:"index"`
	Position   int    `json:"position"`
}

// DocumentChunkKey builds the storage key for a document/chunk link
func DocumentChunkKey(documentID, chunkID string) string {
	return documentID + ":" + chunkID
}

// DocumentFilter narrows document listings
type DocumentFilter struct {
	ActiveOnly bool
	Type       string
	Limit      int
	Offset     int
}

// ChunkCommit reports how a chunk commit resolved. Chunks whose content hash
// was committed by a concurrent writer are linked instead of inserted.
type ChunkCommit struct {
	Inserted     int
	Deduplicated int
}
