package models

import "time"

// CacheEntry is a previously answered query keyed by its embedding
type CacheEntry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Language   string    `json:"language" badgerhold:"index"`
	Embedding  []float32 `json:"-"`
	Response   []byte    `json:"response"` // Opaque JSON payload returned verbatim on a hit
	TokensUsed int       `json:"tokens_used"`
	HitCount   int       `json:"hit_count"`
	CreatedAt  time.Time `json:"created_at"`
	LastHitAt  time.Time `json:"last_hit_at,omitempty"`
}

// CacheMatch is the nearest cache entry for a query vector
type CacheMatch struct {
	Entry      *CacheEntry
	Similarity float64
}
