package retrieval

import (
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/models"
)

// Gate classifies retrieval quality before any answer is generated
type Gate struct {
	high   float64
	medium float64
}

// NewGate reads the high and medium thresholds, defaulting to 0.80 and 0.65
func NewGate(config *common.RetrievalConfig) *Gate {
	g := &Gate{high: config.HighThreshold, medium: config.MediumThreshold}
	if g.high <= 0 {
		g.high = 0.80
	}
	if g.medium <= 0 {
		g.medium = 0.65
	}
	return g
}

// Calculate rates a result set:
// high needs a top score of at least the high threshold and two or more
// results above the medium threshold; medium needs a top score of at least
// the medium threshold; anything else, including no results, is low.
func (g *Gate) Calculate(chunks []models.RetrievedChunk) models.Confidence {
	if len(chunks) == 0 {
		return models.ConfidenceLow
	}

	top := 0.0
	good := 0
	for _, c := range chunks {
		if c.SemanticScore > top {
			top = c.SemanticScore
		}
		if c.SemanticScore > g.medium {
			good++
		}
	}

	switch {
	case top >= g.high && good >= 2:
		return models.ConfidenceHigh
	case top >= g.medium:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// ShouldGenerate is true for medium and high confidence
func (g *Gate) ShouldGenerate(c models.Confidence) bool {
	return c == models.ConfidenceHigh || c == models.ConfidenceMedium
}
