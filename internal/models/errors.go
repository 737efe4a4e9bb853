package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrQuotaExhausted   = errors.New("monthly quota exhausted")
	ErrExtractionFailed = errors.New("document text extraction failed")
	ErrOCRTimeout       = errors.New("ocr job timed out")
	ErrOCRJobFailed     = errors.New("ocr job failed")
	ErrEmptyEmbedding   = errors.New("no embedding returned")
	ErrInvalidRequest   = errors.New("invalid request")
)

// ErrorType is the caller-facing failure taxonomy
type ErrorType string

const (
	ErrorQueryBlocked ErrorType = "query_blocked"
	ErrorRateLimit    ErrorType = "rate_limit"
	ErrorDailyLimit   ErrorType = "daily_limit"
	ErrorTokenLimit   ErrorType = "token_limit"
	ErrorAPI          ErrorType = "api_error"
)

// PipelineError is a user-safe, typed failure. Internal causes are kept for
// logging only and never serialized.
type PipelineError struct {
	Type         ErrorType
	Message      string
	FallbackURL  string
	RetryAfterMs *int64
	Cause        error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Info converts the error into its serializable form
func (e *PipelineError) Info() *ErrorInfo {
	return &ErrorInfo{
		Type:         e.Type,
		Message:      e.Message,
		FallbackURL:  e.FallbackURL,
		RetryAfterMs: e.RetryAfterMs,
	}
}

// PartialIngestionError reports quota exhaustion part way through a document.
// Batches embedded before the failure are kept.
type PartialIngestionError struct {
	DocumentID     string
	EmbeddedChunks int
	TotalChunks    int
	Err            error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("ingestion stopped after %d of %d new chunks (document %s): %v",
		e.EmbeddedChunks, e.TotalChunks, e.DocumentID, e.Err)
}

func (e *PartialIngestionError) Unwrap() error {
	return e.Err
}
