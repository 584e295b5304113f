package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

func numberedLines(n, width int) string {
	lines := make([]string, n)
	for i := range lines {
		line := fmt.Sprintf("line %d ", i+1)
		lines[i] = line + strings.Repeat("x", max(0, width-len(line)))
	}
	return strings.Join(lines, "\n")
}

func TestBudgets(t *testing.T) {
	tests := []struct {
		name        string
		tokens      int
		overlap     int
		wantMax     int
		wantOverlap int
	}{
		{"defaults", 400, 80, 1600, 320},
		{"floor applies", 2, 0, 32, 0},
		{"zero tokens", 0, 0, 32, 0},
		{"negative overlap clamps", 10, -5, 40, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxChars, overlapChars := Budgets(tt.tokens, tt.overlap)
			assert.Equal(t, tt.wantMax, maxChars)
			assert.Equal(t, tt.wantOverlap, overlapChars)
		})
	}
}

func TestChunk_SingleShortDocument(t *testing.T) {
	chunks := Chunk("# Title\n\nSome notes.", 400, 80)

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, "# Title\n\nSome notes.", chunks[0].Text)
	assert.Equal(t, types.FingerprintString(chunks[0].Text), chunks[0].Hash)
}

func TestChunk_EmptyText(t *testing.T) {
	chunks := Chunk("", 400, 80)

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
	assert.Equal(t, "", chunks[0].Text)
}

func TestChunk_Deterministic(t *testing.T) {
	text := numberedLines(200, 60)

	first := Chunk(text, 50, 10)
	second := Chunk(text, 50, 10)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Hash, second[i].Hash)
		assert.Equal(t, first[i].StartLine, second[i].StartLine)
		assert.Equal(t, first[i].EndLine, second[i].EndLine)
	}
}

func TestChunk_NoOverlapCoversEveryLineOnce(t *testing.T) {
	text := numberedLines(137, 45)

	chunks := Chunk(text, 40, 0)
	require.Greater(t, len(chunks), 1)

	next := 1
	for _, c := range chunks {
		assert.Equal(t, next, c.StartLine, "chunks must be contiguous")
		assert.GreaterOrEqual(t, c.EndLine, c.StartLine)
		next = c.EndLine + 1
	}
	assert.Equal(t, 138, next, "last chunk must end on the last line")

	// Reassembling the chunk texts yields the original document
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	assert.Equal(t, text, strings.Join(parts, "\n"))
}

func TestChunk_RespectsCharacterBudget(t *testing.T) {
	text := numberedLines(100, 30)
	maxChars, _ := Budgets(25, 0)

	for _, c := range Chunk(text, 25, 0) {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), maxChars)
	}
}

func TestChunk_LongLineSplitIntoSegments(t *testing.T) {
	long := strings.Repeat("a", 100)
	text := "intro\n" + long + "\noutro"

	// maxChars = 32
	chunks := Chunk(text, 8, 0)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 32)
	}

	// Every piece of the long line keeps line number 2
	var rebuilt strings.Builder
	for _, c := range chunks {
		if c.StartLine == 2 && c.EndLine == 2 {
			rebuilt.WriteString(c.Text)
		}
	}
	assert.Contains(t, long, rebuilt.String())
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[len(chunks)-1].EndLine)
}

func TestChunk_MultibyteLineSplitOnRunes(t *testing.T) {
	text := strings.Repeat("日本語", 20) // 60 runes

	chunks := Chunk(text, 8, 0)
	require.Len(t, chunks, 2)
	assert.True(t, utf8.ValidString(chunks[0].Text))
	assert.True(t, utf8.ValidString(chunks[1].Text))
	assert.Equal(t, 32, utf8.RuneCountInString(chunks[0].Text))
	assert.Equal(t, text, chunks[0].Text+chunks[1].Text)
}

func TestChunk_OverlapCarriesTrailingLines(t *testing.T) {
	// Ten lines of 9 chars each cost 10 chars with the newline
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("line-%04d", i+1)
	}
	text := strings.Join(lines, "\n")

	// maxChars = 40, overlapChars = 12 (two lines are needed to reach it)
	chunks := Chunk(text, 10, 3)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
	assert.Equal(t, 3, chunks[1].StartLine, "second chunk starts with the two carried lines")
	assert.Equal(t, 6, chunks[1].EndLine)

	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine, "consecutive chunks overlap")
	}
	assert.Equal(t, 10, chunks[len(chunks)-1].EndLine)
}

func TestChunker_ChunkDocumentAssignsIDs(t *testing.T) {
	c := New(10, 0)
	chunks := c.ChunkDocument("memory/notes.md", types.SourceMemory, numberedLines(20, 20))
	require.NotEmpty(t, chunks)

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		require.NoError(t, chunk.Validate())
		assert.Equal(t, "memory/notes.md", chunk.Path)
		assert.Equal(t, types.SourceMemory, chunk.Source)
		assert.Equal(t, fmt.Sprintf("memory/notes.md:%d-%d", chunk.StartLine, chunk.EndLine), chunk.ID)
		assert.False(t, seen[chunk.ID], "duplicate id %s", chunk.ID)
		seen[chunk.ID] = true
	}
}
