package searcher

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/memcontext-mcp/internal/embedder"
	"github.com/dshills/memcontext-mcp/internal/hybrid"
	"github.com/dshills/memcontext-mcp/internal/indexer"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

const (
	// DefaultMaxResults is used when a request leaves MaxResults at 0
	DefaultMaxResults = 6

	// DefaultMinScore is used when a request leaves MinScore nil
	DefaultMinScore = 0.35

	// DefaultSnippetChars is the display budget for vector-leg snippets
	DefaultSnippetChars = 700

	// DefaultCandidateMultiplier scales MaxResults into a per-leg candidate count
	DefaultCandidateMultiplier = 3

	// DefaultMaxCandidates caps the per-leg candidate count
	DefaultMaxCandidates = 200

	snippetMarker = "..."
)

// LexicalEngine is a keyword index. Ranks are 0 for the best match and
// more negative for weaker ones.
type LexicalEngine interface {
	Name() string
	Available() bool
	SearchLexical(ctx context.Context, query string, limit int, source types.Source) ([]types.LexicalCandidate, error)
}

// VectorEngine is a nearest-neighbour index over chunk embeddings
type VectorEngine interface {
	SearchVector(ctx context.Context, vector []float32, limit int, source types.Source) ([]types.VectorCandidate, error)
}

// Syncer brings the index up to date before a search
type Syncer interface {
	Dirty() bool
	Sync(ctx context.Context, opts indexer.SyncOptions) (*indexer.Statistics, error)
}

// Config contains configuration for the query engine
type Config struct {
	Weights             hybrid.Weights
	Normalizer          hybrid.Normalizer
	MaxResults          int
	MinScore            float64
	SnippetChars        int
	CandidateMultiplier int
	MaxCandidates       int
	Disabled            bool // Search returns types.ErrIndexingDisabled
}

// DefaultConfig returns a fully populated configuration
func DefaultConfig() Config {
	return Config{
		Weights:             hybrid.DefaultWeights(),
		Normalizer:          hybrid.DefaultNormalizer(),
		MaxResults:          DefaultMaxResults,
		MinScore:            DefaultMinScore,
		SnippetChars:        DefaultSnippetChars,
		CandidateMultiplier: DefaultCandidateMultiplier,
		MaxCandidates:       DefaultMaxCandidates,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Normalizer.Validate(); err != nil {
		return err
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be positive", types.ErrInvalidConfig)
	}
	if err := validateMinScore(c.MinScore); err != nil {
		return err
	}
	if c.SnippetChars <= 0 || c.CandidateMultiplier <= 0 || c.MaxCandidates <= 0 {
		return fmt.Errorf("%w: snippet and candidate limits must be positive", types.ErrInvalidConfig)
	}
	return nil
}

func validateMinScore(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: min score must be within [0, 1], got %v", types.ErrInvalidConfig, v)
	}
	return nil
}

// Request contains parameters for a search
type Request struct {
	Query      string
	MaxResults int      // 0 means the configured default
	MinScore   *float64 // nil means the configured default
	Source     types.Source
}

// Response contains search results and metadata
type Response struct {
	Results        []types.MergedResult
	VectorLegUsed  bool
	LexicalLegUsed bool
	Duration       time.Duration
}

// QueryEngine runs hybrid searches over one workspace
type QueryEngine struct {
	lexical LexicalEngine
	vector  VectorEngine
	choice  embedder.Choice
	syncer  Syncer
	cfg     Config
	logger  zerolog.Logger
}

// New creates a QueryEngine. lexical, vector and syncer may be nil.
func New(lexical LexicalEngine, vector VectorEngine, choice embedder.Choice, syncer Syncer, cfg Config, logger zerolog.Logger) (*QueryEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &QueryEngine{
		lexical: lexical,
		vector:  vector,
		choice:  choice,
		syncer:  syncer,
		cfg:     cfg,
		logger:  logger.With().Str("component", "search").Logger(),
	}, nil
}

// Config returns the resolved configuration
func (q *QueryEngine) Config() Config {
	return q.cfg
}

// Search returns merged results ordered by combined score. Engine and
// provider failures drop the affected leg rather than failing the search.
func (q *QueryEngine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if q.cfg.Disabled {
		return nil, types.ErrIndexingDisabled
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = q.cfg.MaxResults
	}
	minScore := q.cfg.MinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
		if err := validateMinScore(minScore); err != nil {
			return nil, err
		}
	}

	if q.syncer != nil && q.syncer.Dirty() {
		if _, err := q.syncer.Sync(ctx, indexer.SyncOptions{}); err != nil {
			q.logger.Warn().Err(err).Msg("sync before search failed, searching committed index")
		}
	}

	resp := &Response{Results: []types.MergedResult{}}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		resp.Duration = time.Since(start)
		return resp, nil
	}

	candidates := min(max(maxResults*q.cfg.CandidateMultiplier, 1), q.cfg.MaxCandidates)

	var lexical []types.LexicalCandidate
	var vector []types.VectorCandidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical, resp.LexicalLegUsed = q.lexicalLeg(gctx, query, candidates, req.Source)
		return nil
	})
	g.Go(func() error {
		vector, resp.VectorLegUsed = q.vectorLeg(gctx, query, candidates, req.Source)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range vector {
		vector[i].Snippet = truncateSnippet(vector[i].Snippet, q.cfg.SnippetChars)
	}

	merged := hybrid.Merge(
		q.cfg.Normalizer.ScoreVector(vector),
		q.cfg.Normalizer.ScoreLexical(lexical),
		q.cfg.Weights,
	)
	for _, r := range merged {
		if r.Score < minScore {
			continue
		}
		resp.Results = append(resp.Results, r)
		if len(resp.Results) == maxResults {
			break
		}
	}

	resp.Duration = time.Since(start)
	q.logger.Debug().
		Str("query", query).
		Int("lexical", len(lexical)).
		Int("vector", len(vector)).
		Int("results", len(resp.Results)).
		Dur("duration", resp.Duration).
		Msg("search completed")
	return resp, nil
}

func (q *QueryEngine) lexicalLeg(ctx context.Context, query string, limit int, source types.Source) ([]types.LexicalCandidate, bool) {
	if q.lexical == nil || !q.lexical.Available() {
		return nil, false
	}
	hits, err := q.lexical.SearchLexical(ctx, query, limit, source)
	if err != nil {
		q.logger.Warn().Err(err).Str("engine", q.lexical.Name()).Msg("lexical search failed")
		return nil, false
	}
	return hits, true
}

func (q *QueryEngine) vectorLeg(ctx context.Context, query string, limit int, source types.Source) ([]types.VectorCandidate, bool) {
	if q.vector == nil || q.choice.Kind() == embedder.KindDisabled {
		return nil, false
	}
	vectors, err := q.choice.Embed(ctx, []string{query})
	if err != nil {
		q.logger.Warn().Err(err).Msg("query embedding failed, using lexical results only")
		return nil, false
	}
	if len(vectors) != 1 || types.IsZeroVector(vectors[0]) {
		return nil, false
	}
	hits, err := q.vector.SearchVector(ctx, vectors[0], limit, source)
	if err != nil {
		q.logger.Warn().Err(err).Msg("vector search failed")
		return nil, false
	}
	return hits, true
}

// truncateSnippet shortens text to maxChars runes plus a marker
func truncateSnippet(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars]) + snippetMarker
}
