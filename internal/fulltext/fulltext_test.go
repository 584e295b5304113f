package fulltext

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

func chunk(path string, start, end int, source types.Source, text string) types.Chunk {
	return types.Chunk{
		ID:        types.ChunkID(path, start, end),
		Path:      path,
		Source:    source,
		StartLine: start,
		EndLine:   end,
		Text:      text,
		Hash:      types.FingerprintString(text),
	}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestSearchLexical_AllTermsRequired(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.ReplaceChunks("MEMORY.md", []types.Chunk{
		chunk("MEMORY.md", 1, 2, types.SourceMemory, "Go is a programming language\ndesigned at Google"),
		chunk("MEMORY.md", 3, 3, types.SourceMemory, "The language of flowers"),
	}))

	hits, err := ix.SearchLexical(context.Background(), "programming language", 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "MEMORY.md:1-2", hits[0].ID)
	assert.Equal(t, "Go is a programming language", hits[0].Snippet)
	assert.LessOrEqual(t, hits[0].Rank, 0.0)
	assert.Greater(t, hits[0].Rank, -types.LexicalRankSpan)

	hits, err = ix.SearchLexical(context.Background(), "LANGUAGE", 10, "")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchLexical_SourceFilter(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.ReplaceChunks("MEMORY.md", []types.Chunk{
		chunk("MEMORY.md", 1, 1, types.SourceMemory, "deploy checklist"),
	}))
	require.NoError(t, ix.ReplaceChunks("sessions/a.md", []types.Chunk{
		chunk("sessions/a.md", 1, 1, types.SourceSessions, "deploy went fine"),
	}))

	hits, err := ix.SearchLexical(context.Background(), "deploy", 10, types.SourceSessions)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.SourceSessions, hits[0].Source)
}

func TestSearchLexical_EmptyQuery(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.ReplaceChunks("a.md", []types.Chunk{
		chunk("a.md", 1, 1, types.SourceMemory, "anything"),
	}))

	for _, q := range []string{"", "   ", "?!"} {
		hits, err := ix.SearchLexical(context.Background(), q, 10, "")
		require.NoError(t, err)
		assert.Empty(t, hits, "query %q", q)
	}
}

func TestReplaceChunks(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.ReplaceChunks("a.md", []types.Chunk{
		chunk("a.md", 1, 1, types.SourceMemory, "old walrus"),
		chunk("a.md", 2, 2, types.SourceMemory, "old penguin"),
	}))
	require.NoError(t, ix.ReplaceChunks("a.md", []types.Chunk{
		chunk("a.md", 1, 1, types.SourceMemory, "new walrus"),
	}))
	assert.Equal(t, 1, ix.Len())

	hits, err := ix.SearchLexical(ctx, "penguin", 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.SearchLexical(ctx, "walrus", 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new walrus", hits[0].Snippet)

	require.NoError(t, ix.DeletePath("a.md"))
	assert.Equal(t, 0, ix.Len())
	hits, err = ix.SearchLexical(ctx, "walrus", 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLexical_RankOrder(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.ReplaceChunks("a.md", []types.Chunk{
		chunk("a.md", 1, 1, types.SourceMemory, "kiwi"),
		chunk("a.md", 2, 2, types.SourceMemory, "kiwi kiwi kiwi orchard banana mango papaya"),
	}))

	hits, err := ix.SearchLexical(context.Background(), "kiwi", 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[0].Rank, hits[1].Rank)
}

func TestClose(t *testing.T) {
	ix, err := New()
	require.NoError(t, err)
	assert.True(t, ix.Available())
	assert.Equal(t, "bleve", ix.Name())

	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())
	assert.False(t, ix.Available())

	_, err = ix.SearchLexical(context.Background(), "x", 1, "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ix.ReplaceChunks("a.md", nil), ErrClosed)
}

func TestMatchingLines(t *testing.T) {
	assert.Equal(t, "beta Gamma", matchingLines("alpha\nbeta Gamma\ndelta", []string{"gamma"}))
	assert.Equal(t, "alpha\nbeta", matchingLines("alpha\nbeta", []string{"zeta"}))
}

func TestMatchingLines_Bounded(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	words[50] = "needle"
	line := strings.Join(words, " ")

	t.Run("window starts at the match", func(t *testing.T) {
		got := matchingLines(line, []string{"needle"})
		assert.True(t, strings.HasPrefix(got, "...needle "), got)
		assert.True(t, strings.HasSuffix(got, "w81..."), got)
		assert.Len(t, strings.Fields(strings.Trim(got, ".")), snippetTokens)
	})

	t.Run("match near the end keeps a full window", func(t *testing.T) {
		got := matchingLines(line, []string{"w99"})
		assert.True(t, strings.HasPrefix(got, "...w68 "), got)
		assert.True(t, strings.HasSuffix(got, " w99"), got)
	})

	t.Run("fallback text is clipped too", func(t *testing.T) {
		got := matchingLines(line, []string{"absent"})
		assert.True(t, strings.HasPrefix(got, "w0 w1 "), got)
		assert.True(t, strings.HasSuffix(got, "w31..."), got)
		assert.Len(t, strings.Fields(got), snippetTokens)
	})
}
