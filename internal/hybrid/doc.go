// Package hybrid normalizes lexical and vector relevance signals and merges
// them into one ranked list.
//
// # Normalization
//
//	lexical: score = (max(RankFloor, rank) - RankFloor) / -RankFloor   // RankFloor = -50
//	vector:  score = max(0, 1 - distance/DistanceSpan)                 // DistanceSpan = 2
//
// Both scores lie in [0, 1].
//
// # Merging
//
//	combined = Weights.Vector*vectorScore + Weights.Text*textScore
//
// A candidate found by only one leg scores 0 on the other leg.
package hybrid
