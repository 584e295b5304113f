package hybrid

import (
	"fmt"
	"math"
	"sort"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

const (
	// DefaultVectorWeight is the weight of the vector leg
	DefaultVectorWeight = 0.7

	// DefaultTextWeight is the weight of the lexical leg
	DefaultTextWeight = 0.3
)

// Weights holds the per-leg multipliers. They are not renormalized.
type Weights struct {
	Vector float64
	Text   float64
}

// DefaultWeights returns the default leg weights
func DefaultWeights() Weights {
	return Weights{Vector: DefaultVectorWeight, Text: DefaultTextWeight}
}

// Validate rejects negative, non-finite, or all-zero weights
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"vector": w.Vector, "text": w.Text} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s weight must be a finite non-negative number, got %v", types.ErrInvalidConfig, name, v)
		}
	}
	if w.Vector == 0 && w.Text == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// Merge combines normalized vector and lexical candidates keyed by id.
//
// An id missing from one list gets 0 from that list. Metadata comes from
// the vector candidate when there is one. Results are sorted by combined
// score descending; equal scores keep first-seen order with the vector list
// scanned first. Repeated ids within one list keep their first occurrence.
func Merge(vector, lexical []types.ScoredCandidate, w Weights) []types.MergedResult {
	if len(vector) == 0 && len(lexical) == 0 {
		return []types.MergedResult{}
	}

	byID := make(map[string]int, len(vector)+len(lexical))
	merged := make([]types.MergedResult, 0, len(vector)+len(lexical))
	seenVector := make(map[string]bool, len(vector))

	for _, c := range vector {
		if seenVector[c.ID] {
			continue
		}
		seenVector[c.ID] = true
		byID[c.ID] = len(merged)
		merged = append(merged, types.MergedResult{
			ID:          c.ID,
			Path:        c.Path,
			Source:      c.Source,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			Snippet:     c.Snippet,
			VectorScore: c.Score,
		})
	}

	seenText := make(map[string]bool, len(lexical))
	for _, c := range lexical {
		if seenText[c.ID] {
			continue
		}
		seenText[c.ID] = true
		if idx, ok := byID[c.ID]; ok {
			merged[idx].TextScore = c.Score
			continue
		}
		byID[c.ID] = len(merged)
		merged = append(merged, types.MergedResult{
			ID:        c.ID,
			Path:      c.Path,
			Source:    c.Source,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   c.Snippet,
			TextScore: c.Score,
		})
	}

	for i := range merged {
		merged[i].Score = w.Vector*merged[i].VectorScore + w.Text*merged[i].TextScore
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged
}
