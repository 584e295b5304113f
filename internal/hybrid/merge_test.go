package hybrid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

func scored(id string, score float64) types.ScoredCandidate {
	return types.ScoredCandidate{ID: id, Path: id, StartLine: 1, EndLine: 1, Snippet: "snippet " + id, Score: score}
}

func TestMerge_VectorOnlyCandidate(t *testing.T) {
	results := Merge([]types.ScoredCandidate{scored("a", 0.9)}, nil, Weights{Vector: 0.7, Text: 0.3})

	require.Len(t, results, 1)
	assert.InDelta(t, 0.63, results[0].Score, 1e-9)
	assert.InDelta(t, 0.0, results[0].TextScore, 1e-9)
}

func TestMerge_CandidateInBothLists(t *testing.T) {
	results := Merge(
		[]types.ScoredCandidate{scored("a", 0.9)},
		[]types.ScoredCandidate{scored("a", 0.8)},
		Weights{Vector: 0.7, Text: 0.3},
	)

	require.Len(t, results, 1)
	assert.InDelta(t, 0.87, results[0].Score, 1e-9)
	assert.InDelta(t, 0.9, results[0].VectorScore, 1e-9)
	assert.InDelta(t, 0.8, results[0].TextScore, 1e-9)
}

func TestMerge_EmptyInputs(t *testing.T) {
	results := Merge(nil, nil, DefaultWeights())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMerge_AbsenceIsPenalized(t *testing.T) {
	results := Merge(
		[]types.ScoredCandidate{scored("both", 0.6)},
		[]types.ScoredCandidate{scored("both", 0.6), scored("text-only", 1.0)},
		DefaultWeights(),
	)

	require.Len(t, results, 2)
	assert.Equal(t, "both", results[0].ID)
	assert.InDelta(t, 0.6, results[0].Score, 1e-9)
	assert.Equal(t, "text-only", results[1].ID)
	assert.InDelta(t, 0.3, results[1].Score, 1e-9)
}

func TestMerge_MetadataFromVectorSide(t *testing.T) {
	vec := types.ScoredCandidate{ID: "x", Path: "x.md", StartLine: 2, EndLine: 9, Snippet: "full vector text", Source: types.SourceMemory, Score: 0.5}
	lex := types.ScoredCandidate{ID: "x", Path: "x.md", StartLine: 2, EndLine: 9, Snippet: "...short...", Source: types.SourceMemory, Score: 0.5}

	results := Merge([]types.ScoredCandidate{vec}, []types.ScoredCandidate{lex}, DefaultWeights())

	require.Len(t, results, 1)
	assert.Equal(t, "full vector text", results[0].Snippet)
}

func TestMerge_MetadataFromLexicalWhenNoVector(t *testing.T) {
	lex := types.ScoredCandidate{ID: "y", Path: "y.md", StartLine: 4, EndLine: 5, Snippet: "lexical", Source: types.SourceSessions, Score: 1}

	results := Merge(nil, []types.ScoredCandidate{lex}, DefaultWeights())

	require.Len(t, results, 1)
	assert.Equal(t, "lexical", results[0].Snippet)
	assert.Equal(t, types.SourceSessions, results[0].Source)
	assert.Equal(t, 4, results[0].StartLine)
}

func TestMerge_TieBreakIsFirstSeen(t *testing.T) {
	// All combined scores are 0.5
	vector := []types.ScoredCandidate{scored("v1", 0.5), scored("v2", 0.5)}
	lexical := []types.ScoredCandidate{scored("t1", 0.5), scored("t2", 0.5)}

	for i := 0; i < 5; i++ {
		results := Merge(vector, lexical, Weights{Vector: 1, Text: 1})
		require.Len(t, results, 4)
		ids := []string{results[0].ID, results[1].ID, results[2].ID, results[3].ID}
		assert.Equal(t, []string{"v1", "v2", "t1", "t2"}, ids)
	}
}

func TestMerge_SortedDescending(t *testing.T) {
	results := Merge(
		[]types.ScoredCandidate{scored("a", 0.1), scored("b", 0.9), scored("c", 0.5)},
		[]types.ScoredCandidate{scored("c", 1.0), scored("d", 0.2)},
		DefaultWeights(),
	)

	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "c", results[0].ID)
}

func TestMerge_WeightsNotRenormalized(t *testing.T) {
	results := Merge(
		[]types.ScoredCandidate{scored("a", 1)},
		[]types.ScoredCandidate{scored("a", 1)},
		Weights{Vector: 1, Text: 1},
	)

	require.Len(t, results, 1)
	assert.InDelta(t, 2.0, results[0].Score, 1e-9)
}

func TestMerge_DuplicateIDsKeepFirst(t *testing.T) {
	results := Merge(
		[]types.ScoredCandidate{scored("a", 0.9), scored("a", 0.1)},
		nil,
		Weights{Vector: 1, Text: 0},
	)

	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Vector: 0, Text: 1}.Validate())

	for _, w := range []Weights{
		{Vector: -0.1, Text: 0.3},
		{Vector: math.NaN(), Text: 0.3},
		{Vector: 0.7, Text: math.Inf(1)},
		{Vector: 0, Text: 0},
	} {
		assert.True(t, errors.Is(w.Validate(), types.ErrInvalidConfig), "%+v", w)
	}
}
