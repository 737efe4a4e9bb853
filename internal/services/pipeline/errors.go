package pipeline

import (
	"fmt"

	"github.com/ternarybob/yojana/internal/models"
)

const (
	noResultsGuidance     = "I could not find information about this in the scheme documents I have."
	lowConfidenceGuidance = "I found some related documents, but not enough to answer this reliably."
)

// guidance is a successful, zero-token answer that points at the fallback resource
func (s *Service) guidance(lead string) *models.AnswerData {
	return &models.AnswerData{
		Answer: fmt.Sprintf("%s Please check %s (%s) or visit your nearest Grama One or Karnataka One centre for accurate details.",
			lead, s.fallbackName(), s.fallback.URL),
		Citations:  []models.Citation{},
		Confidence: models.ConfidenceLow,
	}
}

func (s *Service) fallbackName() string {
	if s.fallback.Name == "" {
		return "the official portal"
	}
	return s.fallback.Name
}

func (s *Service) failure(err *models.PipelineError) *models.QueryResponse {
	return &models.QueryResponse{Success: false, Error: err.Info()}
}

func (s *Service) rateLimitError(decision models.RateLimitDecision) *models.PipelineError {
	retry := decision.RetryAfterMs
	if decision.Type == models.ErrorDailyLimit {
		return &models.PipelineError{
			Type:         models.ErrorDailyLimit,
			Message:      "Today's question limit has been reached. Please try again tomorrow.",
			FallbackURL:  s.fallback.URL,
			RetryAfterMs: &retry,
		}
	}
	return &models.PipelineError{
		Type:         models.ErrorRateLimit,
		Message:      "Too many questions right now. Please wait a few seconds and try again.",
		FallbackURL:  s.fallback.URL,
		RetryAfterMs: &retry,
	}
}

func (s *Service) tokenLimitError(cause error) *models.PipelineError {
	return &models.PipelineError{
		Type:        models.ErrorTokenLimit,
		Message:     "This question needs more context than can be processed. Please ask a narrower question.",
		FallbackURL: s.fallback.URL,
		Cause:       cause,
	}
}

func (s *Service) apiError(message string, cause error) *models.PipelineError {
	return &models.PipelineError{
		Type:        models.ErrorAPI,
		Message:     message,
		FallbackURL: s.fallback.URL,
		Cause:       cause,
	}
}
