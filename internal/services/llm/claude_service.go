package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"golang.org/x/time/rate"
)

// ClaudeService generates answers using the Anthropic Messages API
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
	limiter   *rate.Limiter
	retry     *RetryConfig
}

var _ interfaces.GenerationService = (*ClaudeService)(nil)

// NewClaudeService creates a new Claude generation service.
//
// The API key is resolved from ANTHROPIC_API_KEY / YOJANA_CLAUDE_API_KEY
// first, then from claude.api_key in config.
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey, err := common.ResolveAPIKey("anthropic_api_key", claudeConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required for Claude service (set via ANTHROPIC_API_KEY, YOJANA_CLAUDE_API_KEY, or claude.api_key in config): %w", err)
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-haiku-4-5"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
		limiter:   newPacer(claudeConfig.RateLimit, time.Second),
		retry:     NewDefaultRetryConfig(),
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Float32("temperature", claudeConfig.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Claude service initialized successfully")

	return service, nil
}

// Generate sends the assembled prompt as a single user message
func (s *ClaudeService) Generate(ctx context.Context, prompt string) (*models.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	startTime := time.Now()

	var resp *anthropic.Message
	err := withRetry(timeoutCtx, s.retry, s.logger, "generate", func() error {
		if err := s.limiter.Wait(timeoutCtx); err != nil {
			return err
		}
		var callErr error
		resp, callErr = s.client.Messages.New(timeoutCtx, params)
		return callErr
	})
	if err != nil {
		s.logger.Error().Err(err).Str("model", s.config.Model).Msg("Claude generation failed")
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	generation := &models.Generation{
		Text:         text.String(),
		PromptTokens: int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	s.logger.Info().
		Str("model", s.config.Model).
		Int("prompt_tokens", generation.PromptTokens).
		Int("output_tokens", generation.OutputTokens).
		Dur("duration", time.Since(startTime)).
		Msg("Claude generation completed")

	return generation, nil
}

// CountTokens uses the Messages count_tokens endpoint for an exact prompt size
func (s *ClaudeService) CountTokens(ctx context.Context, prompt string) (int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(timeoutCtx); err != nil {
		return 0, err
	}

	resp, err := s.client.Messages.CountTokens(timeoutCtx, anthropic.MessageCountTokensParams{
		Model: anthropic.Model(s.config.Model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("Claude token count failed: %w", err)
	}
	return int(resp.InputTokens), nil
}

func (s *ClaudeService) Model() string {
	return s.config.Model
}
