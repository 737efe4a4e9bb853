package common

import (
	"math"
	"unicode/utf8"
)

// DefaultCharsPerToken is the character-ratio heuristic used when no precise count is available
const DefaultCharsPerToken = 3.5

// EstimateTokens approximates the token count of text by character ratio
func EstimateTokens(text string, charsPerToken float64) int {
	if text == "" {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / charsPerToken))
}
