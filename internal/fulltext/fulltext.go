package fulltext

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// ErrClosed is returned by operations on a closed index
var ErrClosed = errors.New("fulltext: index closed")

// Index is an in-memory lexical index over chunks. It mirrors the chunks
// the sync engine commits to storage and serves as a lexical engine.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	chunks map[string]types.Chunk // key: chunk id
	byPath map[string][]string    // key: document path, value: chunk ids
	closed bool
}

// bleveChunk is the document structure stored in Bleve
type bleveChunk struct {
	Text   string `json:"text"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

// New creates an empty in-memory index
func New() (*Index, error) {
	bleveIndex, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &Index{
		index:  bleveIndex,
		chunks: make(map[string]types.Chunk),
		byPath: make(map[string][]string),
	}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = false // chunk text lives in Index.chunks
	textFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	pathFieldMapping := bleve.NewKeywordFieldMapping()
	pathFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("path", pathFieldMapping)

	sourceFieldMapping := bleve.NewKeywordFieldMapping()
	sourceFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Name identifies the engine in logs and status output
func (ix *Index) Name() string { return "bleve" }

// Available reports whether the index can serve queries
func (ix *Index) Available() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return !ix.closed
}

// ReplaceChunks swaps the chunks indexed for path. The batch is applied
// as a unit; on error the previous chunks stay indexed.
func (ix *Index) ReplaceChunks(path string, chunks []types.Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}

	batch := ix.index.NewBatch()
	for _, id := range ix.byPath[path] {
		batch.Delete(id)
	}
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if err := batch.Index(c.ID, bleveChunk{Text: c.Text, Path: c.Path, Source: string(c.Source)}); err != nil {
			return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	for _, id := range ix.byPath[path] {
		delete(ix.chunks, id)
	}
	for _, c := range chunks {
		ix.chunks[c.ID] = c
	}
	if len(ids) == 0 {
		delete(ix.byPath, path)
	} else {
		ix.byPath[path] = ids
	}
	return nil
}

// DeletePath removes every chunk of path
func (ix *Index) DeletePath(path string) error {
	return ix.ReplaceChunks(path, nil)
}

// Len returns the number of indexed chunks
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// SearchLexical returns up to limit chunks containing every query term,
// best first. Ranks follow the lexical convention: 0 best, more negative worse.
func (ix *Index) SearchLexical(ctx context.Context, q string, limit int, source types.Source) ([]types.LexicalCandidate, error) {
	terms := tokenPattern.FindAllString(q, -1)
	if len(terms) == 0 || limit <= 0 {
		return []types.LexicalCandidate{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, ErrClosed
	}

	searchRequest := bleve.NewSearchRequest(buildQuery(strings.Join(terms, " "), source))
	searchRequest.Size = limit

	searchResults, err := ix.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]types.LexicalCandidate, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		c, ok := ix.chunks[hit.ID]
		if !ok {
			continue
		}
		results = append(results, types.LexicalCandidate{
			ID:        c.ID,
			Path:      c.Path,
			Source:    c.Source,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   matchingLines(c.Text, terms),
			Rank:      types.LexicalRank(hit.Score),
		})
	}
	return results, nil
}

// buildQuery requires every analyzed term in the text field
func buildQuery(text string, source types.Source) query.Query {
	match := bleve.NewMatchQuery(text)
	match.SetField("text")
	match.SetOperator(query.MatchQueryOperatorAnd)
	if source == "" {
		return match
	}

	sourceQuery := bleve.NewTermQuery(string(source))
	sourceQuery.SetField("source")
	return bleve.NewConjunctionQuery(match, sourceQuery)
}

// snippetTokens bounds a snippet the way the FTS5 snippet() call does
const snippetTokens = 32

// matchingLines keeps the lines of text that contain a term, or the whole
// text when none does, clipped to snippetTokens words.
func matchingLines(text string, terms []string) string {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if containsAny(line, lowered) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return clipWords(text, lowered)
	}
	return clipWords(strings.Join(kept, "\n"), lowered)
}

// clipWords returns at most snippetTokens words of text, starting at the
// first word holding a term. Elided ends are marked with "...".
func clipWords(text string, lowered []string) string {
	words := strings.Fields(text)
	if len(words) <= snippetTokens {
		return text
	}

	start := 0
	for i, w := range words {
		if containsAny(w, lowered) {
			start = i
			break
		}
	}
	start = min(start, len(words)-snippetTokens)
	end := start + snippetTokens

	snippet := strings.Join(words[start:end], " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(words) {
		snippet += "..."
	}
	return snippet
}

func containsAny(s string, lowered []string) bool {
	s = strings.ToLower(s)
	for _, t := range lowered {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Close releases the index
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.index.Close()
}
