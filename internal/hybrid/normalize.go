package hybrid

import (
	"fmt"
	"math"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

const (
	// DefaultRankFloor is the lexical rank at which scores saturate to 0
	DefaultRankFloor = -types.LexicalRankSpan

	// DefaultDistanceSpan is the cosine distance at which scores reach 0
	DefaultDistanceSpan = 2.0
)

// Normalizer converts engine-native relevance signals into [0, 1] scores.
// Both constants are heuristics and may be recalibrated per engine.
type Normalizer struct {
	RankFloor    float64 // Must be negative
	DistanceSpan float64 // Must be positive
}

// DefaultNormalizer returns a Normalizer with the default constants
func DefaultNormalizer() Normalizer {
	return Normalizer{
		RankFloor:    DefaultRankFloor,
		DistanceSpan: DefaultDistanceSpan,
	}
}

// Validate checks the constants
func (n Normalizer) Validate() error {
	if !(n.RankFloor < 0) || math.IsInf(n.RankFloor, 0) {
		return fmt.Errorf("%w: rank floor must be a finite negative number, got %v", types.ErrInvalidConfig, n.RankFloor)
	}
	if !(n.DistanceSpan > 0) || math.IsInf(n.DistanceSpan, 0) {
		return fmt.Errorf("%w: distance span must be a finite positive number, got %v", types.ErrInvalidConfig, n.DistanceSpan)
	}
	return nil
}

// LexicalScore maps a native lexical rank to [0, 1]: rank 0 gives 1.0 and
// ranks at or below RankFloor give 0.0, linearly in between.
func (n Normalizer) LexicalScore(rank float64) float64 {
	if math.IsNaN(rank) {
		return 0
	}
	clamped := math.Max(n.RankFloor, rank)
	return clamp01((clamped - n.RankFloor) / -n.RankFloor)
}

// VectorScore maps a cosine distance to [0, 1]: distance 0 gives 1.0 and
// distances at or beyond DistanceSpan give 0.0.
func (n Normalizer) VectorScore(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return clamp01(1 - distance/n.DistanceSpan)
}

// ScoreLexical normalizes a lexical candidate list, preserving order
func (n Normalizer) ScoreLexical(candidates []types.LexicalCandidate) []types.ScoredCandidate {
	scored := make([]types.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = types.ScoredCandidate{
			ID:        c.ID,
			Path:      c.Path,
			Source:    c.Source,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   c.Snippet,
			Score:     n.LexicalScore(c.Rank),
		}
	}
	return scored
}

// ScoreVector normalizes a vector candidate list, preserving order
func (n Normalizer) ScoreVector(candidates []types.VectorCandidate) []types.ScoredCandidate {
	scored := make([]types.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = types.ScoredCandidate{
			ID:        c.ID,
			Path:      c.Path,
			Source:    c.Source,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   c.Snippet,
			Score:     n.VectorScore(c.Distance),
		}
	}
	return scored
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
