package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
)

// NewGenerationService returns the generation provider named by
// llm.default_provider. Gemini reuses the embedding client when given.
func NewGenerationService(cfg *common.Config, gemini *GeminiService, logger arbor.ILogger) (interfaces.GenerationService, error) {
	provider := cfg.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderGemini
	}

	logger.Info().Str("provider", string(provider)).Msg("Initializing generation service")

	switch provider {
	case common.LLMProviderGemini:
		if gemini != nil {
			return gemini, nil
		}
		return NewGeminiService(&cfg.Gemini, logger)

	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", provider)
	}
}
