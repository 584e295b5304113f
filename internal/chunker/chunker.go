package chunker

import (
	"strings"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

const (
	// CharsPerToken is the heuristic for estimating tokens (chars/4)
	CharsPerToken = 4

	// MinChunkChars is the floor on the character budget per chunk
	MinChunkChars = 32

	// DefaultTokensPerChunk is the target token count per chunk
	DefaultTokensPerChunk = 400

	// DefaultOverlapTokens is the token overlap carried between chunks
	DefaultOverlapTokens = 80
)

// Chunker splits note text into overlapping line-aligned chunks
type Chunker struct {
	tokensPerChunk int
	overlapTokens  int
}

// New creates a Chunker with the given token budgets
func New(tokensPerChunk, overlapTokens int) *Chunker {
	return &Chunker{
		tokensPerChunk: tokensPerChunk,
		overlapTokens:  overlapTokens,
	}
}

// ChunkDocument chunks a document's text and assigns path-scoped ids
func (c *Chunker) ChunkDocument(path string, source types.Source, text string) []types.Chunk {
	chunks := Chunk(text, c.tokensPerChunk, c.overlapTokens)
	for i := range chunks {
		chunks[i].Path = path
		chunks[i].Source = source
		chunks[i].ID = types.ChunkID(path, chunks[i].StartLine, chunks[i].EndLine)
	}
	return chunks
}

// segment is a piece of one input line, at most maxChars characters long
type segment struct {
	line int
	text string
	size int // characters including the joining newline
}

// Budgets converts token budgets to character budgets
func Budgets(tokensPerChunk, overlapTokens int) (maxChars, overlapChars int) {
	maxChars = max(MinChunkChars, tokensPerChunk*CharsPerToken)
	overlapChars = max(0, overlapTokens*CharsPerToken)
	return maxChars, overlapChars
}

// Chunk splits text into ordered chunks. Characters are counted in runes.
// The result carries spans, text and fingerprints; Path, Source and ID are
// left for the caller to fill in.
func Chunk(text string, tokensPerChunk, overlapTokens int) []types.Chunk {
	maxChars, overlapChars := Budgets(tokensPerChunk, overlapTokens)

	var chunks []types.Chunk
	var current []segment
	currentChars := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		parts := make([]string, len(current))
		for i, seg := range current {
			parts[i] = seg.text
		}
		body := strings.Join(parts, "\n")
		chunks = append(chunks, types.Chunk{
			StartLine: current[0].line,
			EndLine:   current[len(current)-1].line,
			Text:      body,
			Hash:      types.FingerprintString(body),
		})
	}

	carryOverlap := func() {
		if overlapChars <= 0 || len(current) == 0 {
			current = nil
			currentChars = 0
			return
		}
		acc := 0
		start := len(current)
		for start > 0 {
			start--
			acc += current[start].size
			if acc >= overlapChars {
				break
			}
		}
		current = append([]segment(nil), current[start:]...)
		currentChars = acc
	}

	for i, line := range strings.Split(text, "\n") {
		for _, seg := range splitLine(line, i+1, maxChars) {
			if currentChars+seg.size > maxChars && len(current) > 0 {
				flush()
				carryOverlap()
			}
			current = append(current, seg)
			currentChars += seg.size
		}
	}
	flush()

	return chunks
}

// splitLine cuts a line into maxChars-wide segments tagged with its line number
func splitLine(line string, lineNo, maxChars int) []segment {
	runes := []rune(line)
	if len(runes) == 0 {
		return []segment{{line: lineNo, text: "", size: 1}}
	}

	segments := make([]segment, 0, (len(runes)+maxChars-1)/maxChars)
	for start := 0; start < len(runes); start += maxChars {
		end := min(start+maxChars, len(runes))
		segments = append(segments, segment{
			line: lineNo,
			text: string(runes[start:end]),
			size: end - start + 1,
		})
	}
	return segments
}
