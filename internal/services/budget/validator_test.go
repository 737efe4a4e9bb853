package budget

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/models"
)

type mockCounter struct {
	count int
	err   error
	calls int
}

func (m *mockCounter) CountTokens(ctx context.Context, prompt string) (int, error) {
	m.calls++
	return m.count, m.err
}

func newValidator(counter *mockCounter) *Validator {
	config := &common.BudgetConfig{MaxTokens: 30000, CharsPerToken: 3.5}
	if counter == nil {
		return NewValidator(nil, config, arbor.NewLogger())
	}
	return NewValidator(counter, config, arbor.NewLogger())
}

// tokens builds a prompt whose estimate is exactly n
func tokens(n int) string {
	return strings.Repeat("abcdefg", n/2)
}

func TestEstimateTokens(t *testing.T) {
	v := newValidator(nil)
	assert.Equal(t, 0, v.EstimateTokens(""))
	assert.Equal(t, 1, v.EstimateTokens("abc"))
	assert.Equal(t, 2, v.EstimateTokens("abcdefg"))
	assert.Equal(t, 3, v.EstimateTokens("abcdefgh"))
	// runes, not bytes
	assert.Equal(t, 2, v.EstimateTokens("ಯೋಜನೆ"))
}

func TestValidate_Heuristic(t *testing.T) {
	counter := &mockCounter{count: 1}
	v := newValidator(counter)

	small := v.Validate(context.Background(), tokens(1000))
	assert.True(t, small.Allowed)
	assert.Equal(t, MethodHeuristic, small.Method)
	assert.Equal(t, 1000, small.Tokens)

	huge := v.Validate(context.Background(), tokens(40000))
	assert.False(t, huge.Allowed)
	assert.Equal(t, MethodHeuristic, huge.Method)
	assert.Equal(t, 40000, huge.Tokens)

	assert.Equal(t, 0, counter.calls)
}

func TestValidate_PreciseInBorderlineBand(t *testing.T) {
	counter := &mockCounter{count: 29000}
	v := newValidator(counter)

	result := v.Validate(context.Background(), tokens(32000))
	assert.True(t, result.Allowed)
	assert.Equal(t, MethodPrecise, result.Method)
	assert.Equal(t, 29000, result.Tokens)
	assert.Equal(t, 1, counter.calls)

	counter.count = 30001
	result = v.Validate(context.Background(), tokens(20000))
	assert.False(t, result.Allowed)
	assert.Equal(t, MethodPrecise, result.Method)
}

func TestValidate_CounterFailureFallsBack(t *testing.T) {
	v := newValidator(&mockCounter{err: errors.New("unavailable")})

	under := v.Validate(context.Background(), tokens(20000))
	assert.True(t, under.Allowed)
	assert.Equal(t, MethodHeuristicFallback, under.Method)

	over := v.Validate(context.Background(), tokens(32000))
	assert.False(t, over.Allowed)
	assert.Equal(t, MethodHeuristicFallback, over.Method)

	noCounter := newValidator(nil).Validate(context.Background(), tokens(20000))
	assert.Equal(t, MethodHeuristicFallback, noCounter.Method)
}

func chunkOf(text string) models.RetrievedChunk {
	return models.RetrievedChunk{Chunk: &models.Chunk{Text: text}}
}

func TestTruncateContext(t *testing.T) {
	v := newValidator(nil)
	chunks := []models.RetrievedChunk{
		chunkOf(tokens(100)),
		chunkOf(tokens(100)),
		chunkOf(tokens(100)),
	}

	result := v.TruncateContext(chunks, 250)
	assert.Equal(t, 2, result.ChunksUsed)
	assert.Equal(t, 200, result.TokensUsed)
	assert.Len(t, result.Chunks, 2)

	all := v.TruncateContext(chunks, 300)
	assert.Equal(t, 3, all.ChunksUsed)
	assert.Equal(t, 300, all.TokensUsed)
}

func TestTruncateContext_StopsAtFirstOverflow(t *testing.T) {
	v := newValidator(nil)
	chunks := []models.RetrievedChunk{
		chunkOf(tokens(100)),
		chunkOf(tokens(500)),
		chunkOf(tokens(10)),
	}

	result := v.TruncateContext(chunks, 300)
	assert.Equal(t, 1, result.ChunksUsed)
	assert.Equal(t, 100, result.TokensUsed)

	none := v.TruncateContext(chunks, 50)
	assert.Equal(t, 0, none.ChunksUsed)
	assert.Equal(t, 0, none.TokensUsed)
	assert.Empty(t, none.Chunks)
}
