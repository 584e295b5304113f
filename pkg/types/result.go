package types

// LexicalRankSpan bounds native lexical ranks to [-LexicalRankSpan, 0]
const LexicalRankSpan = 50.0

// VectorCandidate is a hit from a vector index engine
type VectorCandidate struct {
	ID        string
	Path      string
	Source    Source
	StartLine int
	EndLine   int
	Snippet   string
	Distance  float64 // Cosine distance, 0 = identical, 2 = opposite
}

// LexicalCandidate is a hit from a lexical index engine
type LexicalCandidate struct {
	ID        string
	Path      string
	Source    Source
	StartLine int
	EndLine   int
	Snippet   string
	Rank      float64 // Native rank, 0 is best, more negative is worse
}

// ScoredCandidate is a candidate after normalization to [0, 1]
type ScoredCandidate struct {
	ID        string
	Path      string
	Source    Source
	StartLine int
	EndLine   int
	Snippet   string
	Score     float64
}

// MergedResult is a ranked hybrid search result
type MergedResult struct {
	ID        string
	Path      string
	Source    Source
	StartLine int
	EndLine   int
	Snippet   string

	// Scoring
	Score       float64 // Combined weighted score
	VectorScore float64 // 0 when absent from the vector list
	TextScore   float64 // 0 when absent from the lexical list
}

// CacheKey identifies a memoized embedding
type CacheKey struct {
	Provider    string
	Model       string
	ProviderKey string
	Hash        string // Fingerprint of the embedded text
}

// LexicalRank maps a non-negative engine match strength (larger is better)
// onto the native rank scale: 0 for an infinitely strong match, approaching
// -LexicalRankSpan as strength goes to zero.
func LexicalRank(strength float64) float64 {
	if strength < 0 || strength != strength {
		strength = 0
	}
	return -LexicalRankSpan / (1 + strength)
}
