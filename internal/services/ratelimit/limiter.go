package ratelimit

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// StateKey is the single shared throughput counter
const StateKey = "generation"

const dateLayout = "2006-01-02"

// Limiter enforces a minimum spacing between generated answers and a daily cap.
// State lives in storage so every instance sharing the store shares the limit.
type Limiter struct {
	storage     interfaces.RateLimitStorage
	minInterval time.Duration
	dailyCap    int
	location    *time.Location
	logger      arbor.ILogger
	now         func() time.Time
}

// NewLimiter creates a limiter. An unknown timezone falls back to Asia/Kolkata, then UTC.
func NewLimiter(storage interfaces.RateLimitStorage, config *common.RateLimitConfig, logger arbor.ILogger) *Limiter {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil || config.Timezone == "" {
		if config.Timezone != "" {
			logger.Warn().Err(err).Str("timezone", config.Timezone).Msg("Unknown rate limit timezone, using Asia/Kolkata")
		}
		location, err = time.LoadLocation("Asia/Kolkata")
		if err != nil {
			location = time.FixedZone("IST", 5*60*60+30*60)
		}
	}

	return &Limiter{
		storage:     storage,
		minInterval: common.ParseDurationOr(config.MinInterval, 4*time.Second),
		dailyCap:    config.DailyCap,
		location:    location,
		logger:      logger,
		now:         time.Now,
	}
}

// Check reports whether a new answer may be generated now.
// The daily cap is checked before the interval; storage errors allow the query.
func (l *Limiter) Check(ctx context.Context) models.RateLimitDecision {
	state, err := l.storage.GetState(ctx, StateKey)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Rate limit state unavailable, allowing query")
		return models.RateLimitDecision{Allowed: true, Remaining: l.dailyCap}
	}

	now := l.now()
	count := l.effectiveCount(state, now)

	if l.dailyCap > 0 && count >= l.dailyCap {
		return models.RateLimitDecision{
			Allowed:      false,
			Type:         models.ErrorDailyLimit,
			RetryAfterMs: 0,
			Remaining:    0,
		}
	}

	remaining := l.dailyCap - count
	if !state.LastQueryAt.IsZero() {
		if wait := l.minInterval - now.Sub(state.LastQueryAt); wait > 0 {
			return models.RateLimitDecision{
				Allowed:      false,
				Type:         models.ErrorRateLimit,
				RetryAfterMs: (wait + time.Millisecond - 1).Milliseconds(),
				Remaining:    remaining,
			}
		}
	}

	return models.RateLimitDecision{Allowed: true, Remaining: remaining}
}

// RecordQuery counts one generated answer. It resets the daily count lazily
// when the calendar day changed and never fails the caller.
func (l *Limiter) RecordQuery(ctx context.Context) {
	now := l.now()
	today := now.In(l.location).Format(dateLayout)

	state, err := l.storage.UpdateState(ctx, StateKey, func(state *models.RateLimitState) error {
		if state.LastResetDate != today {
			state.DailyCount = 0
			state.LastResetDate = today
		}
		state.DailyCount++
		state.LastQueryAt = now
		return nil
	})
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to record query against rate limit")
		return
	}

	l.logger.Debug().
		Int("daily_count", state.DailyCount).
		Int("daily_cap", l.dailyCap).
		Msg("Query recorded")
}

func (l *Limiter) effectiveCount(state *models.RateLimitState, now time.Time) int {
	if state.LastResetDate != now.In(l.location).Format(dateLayout) {
		return 0
	}
	return state.DailyCount
}
