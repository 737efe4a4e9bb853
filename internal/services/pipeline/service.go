// Package pipeline answers citizen questions: sanitize, rate limit, cache,
// retrieve, gate, budget, generate, validate.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/ternarybob/yojana/internal/services/budget"
	"github.com/ternarybob/yojana/internal/services/cache"
	"github.com/ternarybob/yojana/internal/services/prompt"
	"github.com/ternarybob/yojana/internal/services/ratelimit"
	"github.com/ternarybob/yojana/internal/services/retrieval"
	"github.com/ternarybob/yojana/internal/services/sanitizer"
)

const (
	defaultLanguage    = "en"
	defaultSchemeLimit = 5
)

// Components are the collaborators the pipeline drives
type Components struct {
	Limiter   *ratelimit.Limiter
	Cache     *cache.Service
	Retriever *retrieval.Retriever
	Gate      *retrieval.Gate
	Budget    *budget.Validator
	Prompts   *prompt.Builder
	Generator interfaces.GenerationService
	Quota     interfaces.QuotaService
}

// Service is the query orchestrator
type Service struct {
	Components
	fallback         common.FallbackConfig
	maxContextTokens int
	schemeTopK       int
	logger           arbor.ILogger
}

// NewService wires the pipeline from its components and config
func NewService(components Components, config *common.Config, logger arbor.ILogger) *Service {
	maxContext := config.Budget.MaxContextTokens
	if maxContext <= 0 {
		maxContext = 24000
	}
	schemeTopK := config.Retrieval.SchemeSearchTopK
	if schemeTopK <= 0 {
		schemeTopK = 15
	}
	return &Service{
		Components:       components,
		fallback:         config.Fallback,
		maxContextTokens: maxContext,
		schemeTopK:       schemeTopK,
		logger:           logger,
	}
}

// Query answers one question. It never returns a Go error: every failure is
// mapped to a typed, user-safe error in the response.
func (s *Service) Query(ctx context.Context, req models.QueryRequest) (resp *models.QueryResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in query pipeline")
			resp = s.failure(s.apiError("An unexpected error occurred.", fmt.Errorf("panic: %v", r)))
		}
	}()

	answer, err := s.answer(ctx, req)
	if err != nil {
		s.logger.Warn().
			Str("type", string(err.Type)).
			Err(err).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("Query failed")
		return s.failure(err)
	}

	s.logger.Info().
		Str("confidence", string(answer.Confidence)).
		Bool("cached", answer.Cached).
		Int("citations", len(answer.Citations)).
		Int("tokens", answer.TokensUsed).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Query answered")
	return &models.QueryResponse{Success: true, Data: answer}
}

func (s *Service) answer(ctx context.Context, req models.QueryRequest) (*models.AnswerData, *models.PipelineError) {
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}

	decision := s.Limiter.Check(ctx)
	if !decision.Allowed {
		return nil, s.rateLimitError(decision)
	}

	sanitized := sanitizer.Sanitize(req.Query)
	if sanitized.Blocked {
		return nil, &models.PipelineError{
			Type:        models.ErrorQueryBlocked,
			Message:     sanitized.Reason,
			FallbackURL: s.fallback.URL,
		}
	}
	query := sanitized.Query

	var vector []float32
	if s.Cache.Enabled() {
		lookup, err := s.Cache.Lookup(ctx, query, language)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Cache lookup unavailable")
		} else {
			if lookup.Hit {
				if cached, ok := s.decodeCached(lookup.Response); ok {
					return cached, nil
				}
			}
			vector = lookup.Embedding
		}
	}

	var (
		chunks []models.RetrievedChunk
		err    error
	)
	if len(vector) > 0 {
		chunks, err = s.Retriever.RetrieveWithVector(ctx, query, vector, s.Retriever.TopK())
	} else {
		chunks, err = s.Retriever.Retrieve(ctx, query)
	}
	if err != nil {
		return nil, s.apiError("Unable to search the scheme documents right now.", err)
	}
	if len(chunks) == 0 {
		return s.guidance(noResultsGuidance), nil
	}

	confidence := s.Gate.Calculate(chunks)
	if !s.Gate.ShouldGenerate(confidence) {
		return s.guidance(lowConfidenceGuidance), nil
	}

	window := s.Budget.TruncateContext(chunks, s.maxContextTokens)
	if window.ChunksUsed == 0 {
		return nil, s.tokenLimitError(fmt.Errorf("no retrieved chunk fits %d context tokens", s.maxContextTokens))
	}

	text := s.Prompts.Build(query, window.Chunks, language)

	check := s.Budget.Validate(ctx, text)
	if !check.Allowed {
		return nil, s.tokenLimitError(fmt.Errorf("prompt is %d tokens by %s count, budget %d", check.Tokens, check.Method, s.Budget.MaxTokens()))
	}

	if status := s.Quota.Check(ctx, models.ServiceGeneration); !status.Allowed {
		return nil, s.apiError("The monthly answer limit has been reached.", models.ErrQuotaExhausted)
	}

	generation, err := s.Generator.Generate(ctx, text)
	if err != nil {
		return nil, s.apiError("The answer service is temporarily unavailable. Please try again later.", err)
	}

	s.Limiter.RecordQuery(ctx)

	s.Prompts.Validate(generation.Text)
	response := s.Prompts.EnsureLanguage(generation.Text, language)
	answer := &models.AnswerData{
		Answer:     response,
		Citations:  s.Prompts.ExtractCitations(response, window.Chunks),
		Confidence: confidence,
		TokensUsed: generation.TotalTokens(),
	}

	s.Quota.Record(ctx, models.ServiceGeneration, models.UsageTokens, float64(answer.TokensUsed))

	if s.Cache.Enabled() {
		if payload, err := json.Marshal(answer); err == nil {
			s.Cache.Store(ctx, query, language, vector, payload, answer.TokensUsed)
		} else {
			s.logger.Warn().Err(err).Msg("Failed to encode answer for cache")
		}
	}

	return answer, nil
}

// decodeCached returns a cached answer flagged as cached, with no tokens spent
func (s *Service) decodeCached(payload []byte) (*models.AnswerData, bool) {
	var answer models.AnswerData
	if err := json.Unmarshal(payload, &answer); err != nil {
		s.logger.Warn().Err(err).Msg("Unreadable cache entry, treating as miss")
		return nil, false
	}
	answer.Cached = true
	answer.TokensUsed = 0
	if answer.Citations == nil {
		answer.Citations = []models.Citation{}
	}
	return &answer, true
}

// SearchSchemes ranks documents relevant to a description. It never generates
// and does not count against the rate limit.
func (s *Service) SearchSchemes(ctx context.Context, req models.SchemeSearchRequest) *models.SchemeSearchResponse {
	sanitized := sanitizer.Sanitize(req.Query)
	if sanitized.Blocked {
		return &models.SchemeSearchResponse{Error: (&models.PipelineError{
			Type:        models.ErrorQueryBlocked,
			Message:     sanitized.Reason,
			FallbackURL: s.fallback.URL,
		}).Info()}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSchemeLimit
	}

	chunks, err := s.Retriever.RetrieveN(ctx, sanitized.Query, s.schemeTopK)
	if err != nil {
		perr := s.apiError("Unable to search the scheme documents right now.", err)
		s.logger.Warn().Err(perr).Msg("Scheme search failed")
		return &models.SchemeSearchResponse{Error: perr.Info()}
	}

	schemes := GroupByDocument(chunks)
	if len(schemes) > limit {
		schemes = schemes[:limit]
	}

	s.logger.Info().
		Int("chunks", len(chunks)).
		Int("schemes", len(schemes)).
		Msg("Scheme search completed")
	return &models.SchemeSearchResponse{Success: true, Schemes: schemes}
}

// GroupByDocument folds chunk hits into one match per document, scored by
// its best chunk, best first.
func GroupByDocument(chunks []models.RetrievedChunk) []models.SchemeMatch {
	byDoc := make(map[string]*models.SchemeMatch)
	order := []string{}

	for _, c := range chunks {
		if c.Chunk == nil {
			continue
		}
		docID := c.Chunk.DocumentID
		if c.Document != nil {
			docID = c.Document.ID
		}

		match, ok := byDoc[docID]
		if !ok {
			match = &models.SchemeMatch{DocumentID: docID}
			if c.Document != nil {
				match.Title = c.Document.Title
				match.Type = c.Document.Type
				match.SourceURL = c.Document.SourceURL
			}
			byDoc[docID] = match
			order = append(order, docID)
		}

		match.Matches++
		if c.SemanticScore > match.Score {
			match.Score = c.SemanticScore
			match.Excerpt = prompt.Excerpt(c.Chunk.Text)
		}
	}

	schemes := make([]models.SchemeMatch, 0, len(order))
	for _, id := range order {
		schemes = append(schemes, *byDoc[id])
	}
	sort.SliceStable(schemes, func(i, j int) bool {
		return schemes[i].Score > schemes[j].Score
	})
	return schemes
}

// Wait blocks until background cache writes finish
func (s *Service) Wait() {
	s.Cache.Wait()
}
