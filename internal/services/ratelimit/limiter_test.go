package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

type memoryStorage struct {
	mu     sync.Mutex
	states map[string]models.RateLimitState
	err    error
}

var _ interfaces.RateLimitStorage = (*memoryStorage)(nil)

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{states: map[string]models.RateLimitState{}}
}

func (m *memoryStorage) GetState(ctx context.Context, key string) (*models.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	state := m.states[key]
	state.Key = key
	return &state, nil
}

func (m *memoryStorage) UpdateState(ctx context.Context, key string, fn func(state *models.RateLimitState) error) (*models.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	state := m.states[key]
	state.Key = key
	if err := fn(&state); err != nil {
		return nil, err
	}
	m.states[key] = state
	return &state, nil
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(storage interfaces.RateLimitStorage, dailyCap int, start time.Time) (*Limiter, *clock) {
	l := NewLimiter(storage, &common.RateLimitConfig{
		MinInterval: "4s",
		DailyCap:    dailyCap,
		Timezone:    "Asia/Kolkata",
	}, arbor.NewLogger())
	c := &clock{t: start}
	l.now = c.now
	return l, c
}

func TestLimiter_FirstQueryAllowed(t *testing.T) {
	l, _ := newTestLimiter(newMemoryStorage(), 10, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))

	decision := l.Check(context.Background())
	assert.True(t, decision.Allowed)
	assert.Equal(t, 10, decision.Remaining)
}

func TestLimiter_MinimumInterval(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(newMemoryStorage(), 10, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))

	l.RecordQuery(ctx)
	c.advance(1500 * time.Millisecond)

	decision := l.Check(ctx)
	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ErrorRateLimit, decision.Type)
	assert.Equal(t, int64(2500), decision.RetryAfterMs)
	assert.Equal(t, 9, decision.Remaining)

	c.advance(2500 * time.Millisecond)
	decision = l.Check(ctx)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 9, decision.Remaining)
}

func TestLimiter_DailyCapReportsNoRetry(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(newMemoryStorage(), 2, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))

	l.RecordQuery(ctx)
	c.advance(5 * time.Second)
	l.RecordQuery(ctx)

	// Checked immediately, inside the interval: the daily cap wins
	decision := l.Check(ctx)
	assert.False(t, decision.Allowed)
	assert.Equal(t, models.ErrorDailyLimit, decision.Type)
	assert.Equal(t, int64(0), decision.RetryAfterMs)
	assert.Equal(t, 0, decision.Remaining)
}

func TestLimiter_ResetsAtMidnightIST(t *testing.T) {
	ctx := context.Background()
	storage := newMemoryStorage()
	// 18:29 UTC is 23:59 IST
	l, c := newTestLimiter(storage, 1, time.Date(2026, 3, 1, 18, 29, 0, 0, time.UTC))

	l.RecordQuery(ctx)
	c.advance(10 * time.Second)
	assert.Equal(t, models.ErrorDailyLimit, l.Check(ctx).Type)

	// 18:31 UTC is the next calendar day in Kolkata
	c.advance(2 * time.Minute)
	decision := l.Check(ctx)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)

	l.RecordQuery(ctx)
	state, err := storage.GetState(ctx, StateKey)
	require.NoError(t, err)
	assert.Equal(t, 1, state.DailyCount)
	assert.Equal(t, "2026-03-02", state.LastResetDate)
}

func TestLimiter_FailsOpen(t *testing.T) {
	storage := newMemoryStorage()
	storage.err = errors.New("badger closed")
	l, _ := newTestLimiter(storage, 5, time.Now())

	decision := l.Check(context.Background())
	assert.True(t, decision.Allowed)

	assert.NotPanics(t, func() { l.RecordQuery(context.Background()) })
}

func TestNewLimiter_TimezoneFallback(t *testing.T) {
	l := NewLimiter(newMemoryStorage(), &common.RateLimitConfig{Timezone: "Mars/Olympus"}, arbor.NewLogger())
	assert.NotNil(t, l.location)
	assert.Equal(t, 4*time.Second, l.minInterval)

	l = NewLimiter(newMemoryStorage(), &common.RateLimitConfig{}, arbor.NewLogger())
	assert.NotNil(t, l.location)
}
