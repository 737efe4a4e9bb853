package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a document ID. Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewChunkID generates a chunk ID. Format: chk_<uuid>
func NewChunkID() string {
	return "chk_" + uuid.New().String()
}

// NewID generates an unprefixed ID for cache entries and usage rows
func NewID() string {
	return uuid.New().String()
}
