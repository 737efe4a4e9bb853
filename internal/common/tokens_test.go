package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("", 3.5))
	assert.Equal(t, 2, EstimateTokens("abcdefg", 3.5))
	assert.Equal(t, 3, EstimateTokens("abcdefgh", 3.5))
	// Runes, not bytes
	assert.Equal(t, 2, EstimateTokens("ಯೋಜನೆ", 3.5))
	// Non-positive ratios fall back to the default
	assert.Equal(t, 2, EstimateTokens("abcdefg", 0))
	assert.Equal(t, 4, EstimateTokens("abcdefgh", 2))
}
