// Package cache answers repeated questions from previously generated responses,
// matched by embedding similarity rather than exact text.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// LookupResult carries the query embedding on a miss so retrieval can reuse it
type LookupResult struct {
	Hit        bool
	Response   []byte
	Similarity float64
	Embedding  []float32
}

// Service is the semantic response cache
type Service struct {
	storage      interfaces.CacheStorage
	embedder     interfaces.EmbeddingService
	enabled      bool
	threshold    float64
	writeTimeout time.Duration
	wg           sync.WaitGroup
	logger       arbor.ILogger
}

// NewService creates the semantic cache
func NewService(storage interfaces.CacheStorage, embedder interfaces.EmbeddingService, config *common.CacheConfig, logger arbor.ILogger) *Service {
	threshold := config.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.94
	}

	return &Service{
		storage:      storage,
		embedder:     embedder,
		enabled:      config.Enabled,
		threshold:    threshold,
		writeTimeout: common.ParseDurationOr(config.WriteTimeout, 10*time.Second),
		logger:       logger,
	}
}

// Enabled reports whether lookups and writes are active
func (s *Service) Enabled() bool {
	return s.enabled
}

// Lookup embeds the query and returns the nearest same-language entry when its
// similarity reaches the threshold. Storage failures degrade to a miss; only an
// embedding failure is returned.
func (s *Service) Lookup(ctx context.Context, query, language string) (*LookupResult, error) {
	if !s.enabled {
		return &LookupResult{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query for cache lookup: %w", err)
	}
	result := &LookupResult{Embedding: vector}

	match, err := s.storage.Nearest(ctx, vector, language)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Cache lookup failed, treating as miss")
		return result, nil
	}
	if match == nil {
		return result, nil
	}

	result.Similarity = match.Similarity
	if match.Similarity < s.threshold {
		s.logger.Debug().
			Float64("similarity", match.Similarity).
			Float64("threshold", s.threshold).
			Msg("Cache miss")
		return result, nil
	}

	result.Hit = true
	result.Response = match.Entry.Response

	s.logger.Info().
		Str("entry_id", match.Entry.ID).
		Float64("similarity", match.Similarity).
		Msg("Cache hit")

	entryID := match.Entry.ID
	s.detach(ctx, "cache_hit_increment", func(bg context.Context) {
		if err := s.storage.IncrementHit(bg, entryID); err != nil {
			s.logger.Warn().Err(err).Str("entry_id", entryID).Msg("Failed to increment cache hit count")
		}
	})

	return result, nil
}

// Store saves a generated response in the background. It never fails the caller.
// A nil embedding is computed in the background too.
func (s *Service) Store(ctx context.Context, query, language string, embedding []float32, response []byte, tokensUsed int) {
	if !s.enabled {
		return
	}

	s.detach(ctx, "cache_store", func(bg context.Context) {
		vector := embedding
		if len(vector) == 0 {
			var err error
			vector, err = s.embedder.EmbedQuery(bg, query)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Failed to embed query for cache write")
				return
			}
		}

		entry := &models.CacheEntry{
			ID:         common.NewID(),
			Query:      query,
			Language:   language,
			Embedding:  vector,
			Response:   response,
			TokensUsed: tokensUsed,
		}
		if err := s.storage.SaveEntry(bg, entry); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write cache entry")
			return
		}

		s.logger.Debug().Str("entry_id", entry.ID).Str("language", language).Msg("Cache entry written")
	})
}

// Wait blocks until background writes finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// detach runs fn outside the request lifetime, bounded by the write timeout
func (s *Service) detach(ctx context.Context, name string, fn func(context.Context)) {
	s.wg.Add(1)
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	common.SafeGo(s.logger, name, func() {
		defer s.wg.Done()
		defer cancel()
		fn(bg)
	})
}
