package interfaces

import (
	"context"
)

// OCRJobStatus is the state of an asynchronous parsing job
type OCRJobStatus string

const (
	OCRJobPending   OCRJobStatus = "PENDING"
	OCRJobSuccess   OCRJobStatus = "SUCCESS"
	OCRJobError     OCRJobStatus = "ERROR"
	OCRJobCancelled OCRJobStatus = "CANCELLED"
)

// OCRResult is the structured output of a finished parsing job
type OCRResult struct {
	Markdown    string
	PageCount   int
	CreditsUsed float64
}

// OCRService submits documents to an external OCR/parsing service
type OCRService interface {
	// Submit uploads a document and returns the job ID
	Submit(ctx context.Context, filename string, data []byte, languages []string) (string, error)

	// Status polls the job state
	Status(ctx context.Context, jobID string) (OCRJobStatus, error)

	// Result fetches markdown output for a successful job
	Result(ctx context.Context, jobID string) (*OCRResult, error)
}
