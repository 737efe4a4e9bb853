package models

import "time"

// RateLimitState is the persisted throughput counter shared by every instance
type RateLimitState struct {
	Key           string    `json:"key"`
	LastQueryAt   time.Time `json:"last_query_at"`
	DailyCount    int       `json:"daily_count"`
	LastResetDate string    `json:"last_reset_date"` // YYYY-MM-DD in the limiter's timezone
}

// RateLimitDecision is the outcome of a rate limit check
type RateLimitDecision struct {
	Allowed      bool      `json:"allowed"`
	Type         ErrorType `json:"type,omitempty"` // rate_limit or daily_limit when blocked
	RetryAfterMs int64     `json:"retry_after_ms"`
	Remaining    int       `json:"remaining"`
}
