// -----------------------------------------------------------------------
// PDF Extractor Interface - Extract the embedded text layer of PDF documents
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFPageContent represents extracted content from a single PDF page
type PDFPageContent struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// PDFExtractionResult contains the complete native extraction result
type PDFExtractionResult struct {
	PageCount int              `json:"page_count"`
	Pages     []PDFPageContent `json:"pages"`
	FullText  string           `json:"full_text"`
}

// PDFExtractor reads the embedded text layer of a PDF without OCR.
// Scanned PDFs return little or no text; callers fall back to OCR.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (*PDFExtractionResult, error)
}
