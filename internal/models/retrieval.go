package models

// Confidence classifies retrieval quality
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RetrievedChunk is a scored search hit; it is never persisted
type RetrievedChunk struct {
	Chunk         *Chunk    `json:"chunk"`
	Document      *Document `json:"document"`
	SemanticScore float64   `json:"semantic_score"`
	KeywordScore  float64   `json:"keyword_score"`
	FinalScore    float64   `json:"final_score"`
}

// HybridQuery parameterises a store-side hybrid search
type HybridQuery struct {
	Vector        []float32
	Text          string
	Limit         int
	MinSimilarity float64
	RRFK          float64
}

// Citation is derived from a retrieved chunk the answer actually cites
type Citation struct {
	Number          int     `json:"number"`
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	DocumentTitle   string  `json:"document_title"`
	SourceURL       string  `json:"source_url"`
	Excerpt         string  `json:"excerpt"`
	Page            int     `json:"page,omitempty"`
	Section         string  `json:"section,omitempty"`
	ReferenceNumber string  `json:"reference_number,omitempty"`
	Score           float64 `json:"score"`
}

// SchemeMatch groups retrieval hits by document for scheme recommendation
type SchemeMatch struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	SourceURL  string  `json:"source_url"`
	Score      float64 `json:"score"`
	Excerpt    string  `json:"excerpt"`
	Matches    int     `json:"matches"`
}
