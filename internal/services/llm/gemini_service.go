package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiService provides task-typed embeddings and, when selected as the
// generation provider, completions and token counts using Gemini models.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	limiter *rate.Limiter
	retry   *RetryConfig
}

var (
	_ interfaces.EmbeddingService  = (*GeminiService)(nil)
	_ interfaces.GenerationService = (*GeminiService)(nil)
)

// NewGeminiService creates a new Gemini service instance.
//
// The API key is resolved from the environment first, then from config.
// Calls are paced by a limiter built from config.RateLimit.
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	apiKey, err := common.ResolveAPIKey("gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set via YOJANA_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config): %w", err)
	}

	if config.EmbedModel == "" {
		config.EmbedModel = "gemini-embedding-001"
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
		limiter: newPacer(config.RateLimit, 500*time.Millisecond),
		retry:   NewDefaultRetryConfig(),
	}

	logger.Info().
		Str("embed_model", config.EmbedModel).
		Str("model", config.Model).
		Int("embed_dimension", config.EmbedDimension).
		Int("embed_batch_size", config.EmbedBatchSize).
		Dur("timeout", timeout).
		Msg("Gemini service initialized successfully")

	return service, nil
}

// EmbedQuery embeds a search query with the RETRIEVAL_QUERY task type
func (s *GeminiService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	vectors, err := s.embed(ctx, []string{text}, interfaces.EmbeddingTaskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds one batch of chunk texts with the RETRIEVAL_DOCUMENT task type
func (s *GeminiService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > s.MaxBatchSize() {
		return nil, fmt.Errorf("batch of %d exceeds maximum embedding batch size %d", len(texts), s.MaxBatchSize())
	}
	return s.embed(ctx, texts, interfaces.EmbeddingTaskDocument)
}

func (s *GeminiService) MaxBatchSize() int {
	if s.config.EmbedBatchSize <= 0 {
		return 100
	}
	return s.config.EmbedBatchSize
}

func (s *GeminiService) embed(ctx context.Context, texts []string, task interfaces.EmbeddingTask) ([][]float32, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outputDim := int32(s.config.EmbedDimension)
	embedConfig := &genai.EmbedContentConfig{
		TaskType:             string(task),
		OutputDimensionality: &outputDim,
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	startTime := time.Now()

	var result *genai.EmbedContentResponse
	err := withRetry(timeoutCtx, s.retry, s.logger, "embed", func() error {
		if err := s.limiter.Wait(timeoutCtx); err != nil {
			return err
		}
		var callErr error
		result, callErr = s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel, contents, embedConfig)
		return callErr
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("batch_size", len(texts)).
			Str("task", string(task)).
			Msg("Embedding generation failed")
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	vectors, err := embeddingVectors(result, len(texts), s.config.EmbedDimension)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("batch_size", len(texts)).
		Str("task", string(task)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generation completed")

	return vectors, nil
}

// embeddingVectors validates the response shape: one vector per input, each of the configured dimension
func embeddingVectors(result *genai.EmbedContentResponse, expected, dimension int) ([][]float32, error) {
	if result == nil || len(result.Embeddings) == 0 {
		return nil, models.ErrEmptyEmbedding
	}
	if len(result.Embeddings) != expected {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", expected, len(result.Embeddings))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("embedding %d: %w", i, models.ErrEmptyEmbedding)
		}
		if dimension > 0 && len(e.Values) != dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dimension, len(e.Values))
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// Generate produces one completion for a fully assembled prompt
func (s *GeminiService) Generate(ctx context.Context, prompt string) (*models.Generation, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if s.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(s.config.MaxTokens)
	}

	startTime := time.Now()

	var resp *genai.GenerateContentResponse
	err := withRetry(timeoutCtx, s.retry, s.logger, "generate", func() error {
		if err := s.limiter.Wait(timeoutCtx); err != nil {
			return err
		}
		var callErr error
		resp, callErr = s.client.Models.GenerateContent(timeoutCtx, s.config.Model, genai.Text(prompt), genConfig)
		return callErr
	})
	if err != nil {
		s.logger.Error().Err(err).Str("model", s.config.Model).Msg("Gemini generation failed")
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	generation, err := generationFromGemini(resp)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("model", s.config.Model).
		Int("prompt_tokens", generation.PromptTokens).
		Int("output_tokens", generation.OutputTokens).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini generation completed")

	return generation, nil
}

// generationFromGemini extracts text from the first candidate that has any, plus usage
func generationFromGemini(resp *genai.GenerateContentResponse) (*models.Generation, error) {
	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part != nil && part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Gemini model")
	}

	generation := &models.Generation{Text: text.String()}
	if resp.UsageMetadata != nil {
		generation.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		generation.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return generation, nil
}

// CountTokens asks the model for the exact prompt token count
func (s *GeminiService) CountTokens(ctx context.Context, prompt string) (int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(timeoutCtx); err != nil {
		return 0, err
	}

	resp, err := s.client.Models.CountTokens(timeoutCtx, s.config.Model, genai.Text(prompt), nil)
	if err != nil {
		return 0, fmt.Errorf("token count failed: %w", err)
	}
	return int(resp.TotalTokens), nil
}

func (s *GeminiService) Model() string {
	return s.config.Model
}

// Close releases the client reference; genai.Client needs no explicit cleanup
func (s *GeminiService) Close() error {
	s.logger.Info().Msg("Closing Gemini service")
	s.client = nil
	return nil
}

// newPacer builds a single-token limiter spacing calls at least interval apart
func newPacer(interval string, fallback time.Duration) *rate.Limiter {
	d := common.ParseDurationOr(interval, fallback)
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}
