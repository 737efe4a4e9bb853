package models

import "time"

// InputFormat describes how extracted text is structured
type InputFormat string

const (
	FormatMarkdown InputFormat = "markdown"
	FormatPlain    InputFormat = "plain"
)

// Extraction is the output of the tiered extractor
type Extraction struct {
	Text        string           `json:"text"`
	Format      InputFormat      `json:"format"`
	Method      ExtractionMethod `json:"method"`
	Confidence  float64          `json:"confidence"`
	PageCount   int              `json:"page_count"`
	Language    string           `json:"language"`
	CreditsUsed float64          `json:"credits_used"`
	Title       string           `json:"title,omitempty"` // Discovered title (HTML <title>), optional
}

// ExtractRequest is the raw input to the tiered extractor
type ExtractRequest struct {
	Filename      string
	ContentType   string // MIME type; sniffed from Data and Filename when empty
	Data          []byte
	LanguageHints []string
}

// ChunkInput is the chunker's view of an extraction
type ChunkInput struct {
	Text             string
	Format           InputFormat
	PageCount        int
	ExtractionMethod ExtractionMethod
	Language         string
}

// ChunkDraft is a chunk before hashing, embedding and storage
type ChunkDraft struct {
	Text             string
	Section          string
	Page             int
	Language         string
	ExtractionMethod ExtractionMethod
	Position         int
	TokenCount       int
}

// IngestRequest describes one document to ingest
type IngestRequest struct {
	Filename        string     `json:"filename" yaml:"path" validate:"required"`
	ContentType     string     `json:"content_type,omitempty" yaml:"content_type"`
	Data            []byte     `json:"-" yaml:"-"`
	Title           string     `json:"title" yaml:"title" validate:"omitempty,max=300"`
	Type            string     `json:"type" yaml:"type" validate:"omitempty,max=50"`
	SourceURL       string     `json:"source_url" yaml:"source_url" validate:"omitempty,url"`
	ReferenceNumber string     `json:"reference_number,omitempty" yaml:"reference_number"`
	ReferenceDate   *time.Time `json:"reference_date,omitempty" yaml:"reference_date"`
	LanguageHints   []string   `json:"language_hints,omitempty" yaml:"language_hints"`
}

// IngestionResult is the ingestion result contract
type IngestionResult struct {
	DocumentID         string           `json:"document_id"`
	ChunkCount         int              `json:"chunk_count"`
	SkippedDuplicates  int              `json:"skipped_duplicates"`
	ExtractionMethod   ExtractionMethod `json:"extraction_method"`
	Language           string           `json:"language"`
	CreditsUsed        float64          `json:"credits_used"`
	EmbeddingCallsUsed int              `json:"embedding_calls_used"`
}

// IngestionEvent is published while a document moves through ingestion
type IngestionEvent struct {
	Stage     string                 `json:"stage"` // extracted, chunked, embedded, stored, failed
	Filename  string                 `json:"filename"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
