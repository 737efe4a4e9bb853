package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New(`{"type":"rate_limit_error"}`)))
	assert.False(t, IsRateLimitError(errors.New("invalid argument")))
	assert.False(t, IsRateLimitError(nil))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Zero(t, ExtractRetryDelay(errors.New("boom")))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, BackoffMultiplier: 2}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2, 0))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(5, 0), "capped at MaxBackoff")
	assert.Equal(t, 3*time.Second, cfg.CalculateBackoff(0, 3*time.Second))
}

func TestWithRetry_RetriesOnlyRateLimits(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	logger := arbor.NewLogger()

	calls := 0
	err := withRetry(context.Background(), cfg, logger, "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("429 RESOURCE_EXHAUSTED")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = withRetry(context.Background(), cfg, logger, "test", func() error {
		calls++
		return errors.New("permission denied")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}

	calls := 0
	err := withRetry(context.Background(), cfg, arbor.NewLogger(), "test", func() error {
		calls++
		return errors.New("429")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, cfg, arbor.NewLogger(), "test", func() error {
		return errors.New("429")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
