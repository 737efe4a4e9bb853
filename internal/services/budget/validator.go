// Package budget keeps prompts within the generation service's token budget.
package budget

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// Counting methods reported in Result
const (
	MethodHeuristic         = "heuristic"
	MethodPrecise           = "precise"
	MethodHeuristicFallback = "heuristic_fallback"
)

const (
	rejectRatio = 1.2
	acceptRatio = 0.5
)

// Result is the outcome of a budget check
type Result struct {
	Allowed bool
	Tokens  int
	Method  string
}

// TruncateResult is the prefix of chunks that fits a context allowance
type TruncateResult struct {
	Chunks     []models.RetrievedChunk
	TokensUsed int
	ChunksUsed int
}

// Validator estimates prompts cheaply and only asks the precise counter
// when the estimate is too close to the budget to call.
type Validator struct {
	counter       interfaces.TokenCounter
	maxTokens     int
	charsPerToken float64
	logger        arbor.ILogger
}

// NewValidator creates a validator. counter may be nil, in which case
// borderline prompts fall back to the estimate.
func NewValidator(counter interfaces.TokenCounter, config *common.BudgetConfig, logger arbor.ILogger) *Validator {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 30000
	}
	ratio := config.CharsPerToken
	if ratio <= 0 {
		ratio = common.DefaultCharsPerToken
	}
	return &Validator{
		counter:       counter,
		maxTokens:     maxTokens,
		charsPerToken: ratio,
		logger:        logger,
	}
}

// EstimateTokens is ceil(runes / chars-per-token)
func (v *Validator) EstimateTokens(text string) int {
	return common.EstimateTokens(text, v.charsPerToken)
}

// MaxTokens returns the prompt budget
func (v *Validator) MaxTokens() int {
	return v.maxTokens
}

// Validate decides whether prompt fits the budget
func (v *Validator) Validate(ctx context.Context, prompt string) Result {
	estimate := v.EstimateTokens(prompt)
	budget := float64(v.maxTokens)

	if float64(estimate) > rejectRatio*budget {
		v.logger.Warn().
			Int("estimate", estimate).
			Int("max_tokens", v.maxTokens).
			Msg("Prompt rejected by token estimate")
		return Result{Allowed: false, Tokens: estimate, Method: MethodHeuristic}
	}
	if float64(estimate) < acceptRatio*budget {
		return Result{Allowed: true, Tokens: estimate, Method: MethodHeuristic}
	}

	if v.counter != nil {
		count, err := v.counter.CountTokens(ctx, prompt)
		if err == nil {
			v.logger.Debug().
				Int("estimate", estimate).
				Int("count", count).
				Msg("Prompt token count")
			return Result{Allowed: count <= v.maxTokens, Tokens: count, Method: MethodPrecise}
		}
		v.logger.Warn().Err(err).Int("estimate", estimate).Msg("Token count failed, using estimate")
	}

	return Result{Allowed: estimate <= v.maxTokens, Tokens: estimate, Method: MethodHeuristicFallback}
}

// TruncateContext keeps chunks in their given order until the next one would
// overflow maxTokens. Chunks are never split.
func (v *Validator) TruncateContext(chunks []models.RetrievedChunk, maxTokens int) TruncateResult {
	result := TruncateResult{Chunks: make([]models.RetrievedChunk, 0, len(chunks))}
	for _, c := range chunks {
		if c.Chunk == nil {
			continue
		}
		tokens := v.EstimateTokens(c.Chunk.Text)
		if result.TokensUsed+tokens > maxTokens {
			break
		}
		result.Chunks = append(result.Chunks, c)
		result.TokensUsed += tokens
	}
	result.ChunksUsed = len(result.Chunks)

	if result.ChunksUsed < len(chunks) {
		v.logger.Debug().
			Int("kept", result.ChunksUsed).
			Int("retrieved", len(chunks)).
			Int("tokens", result.TokensUsed).
			Msg("Context truncated")
	}
	return result
}
