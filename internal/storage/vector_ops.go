package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// ErrFTSUnavailable is returned by text search when the FTS5 index is missing
var ErrFTSUnavailable = errors.New("storage: full-text index unavailable")

// searchVector returns the chunks nearest to queryVector by cosine distance.
// Zero vectors and vectors of another dimension are never candidates.
func searchVector(ctx context.Context, db *sql.DB, workspaceID int64, queryVector []float32, limit int, source types.Source) ([]types.VectorCandidate, error) {
	if limit <= 0 || len(queryVector) == 0 || types.IsZeroVector(queryVector) {
		return []types.VectorCandidate{}, nil
	}
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, workspaceID, queryVector, limit, source)
	}
	return searchVectorFallback(ctx, db, workspaceID, queryVector, limit, source)
}

// searchVectorOptimized lets sqlite-vec compute distances in SQL
func searchVectorOptimized(ctx context.Context, db *sql.DB, workspaceID int64, queryVector []float32, limit int, source types.Source) ([]types.VectorCandidate, error) {
	query := `
		SELECT c.chunk_id, c.path, c.source, c.start_line, c.end_line, c.text,
		       vec_distance_cosine(e.vector, ?) AS distance
		FROM chunks c
		INNER JOIN chunk_embeddings e ON e.chunk_row_id = c.id
		WHERE c.workspace_id = ? AND e.is_zero = 0 AND e.dimension = ?
	`
	args := []interface{}{serializeVector(queryVector), workspaceID, len(queryVector)}
	query, args = applySourceFilter(query, args, source)
	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.VectorCandidate, 0, limit)
	for rows.Next() {
		var c types.VectorCandidate
		var src string
		if err := rows.Scan(&c.ID, &c.Path, &src, &c.StartLine, &c.EndLine, &c.Snippet, &c.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		c.Source = types.Source(src)
		results = append(results, c)
	}
	return results, rows.Err()
}

// searchVectorFallback computes distances in Go for builds without sqlite-vec
func searchVectorFallback(ctx context.Context, db *sql.DB, workspaceID int64, queryVector []float32, limit int, source types.Source) ([]types.VectorCandidate, error) {
	query := `
		SELECT c.chunk_id, c.path, c.source, c.start_line, c.end_line, c.text,
		       e.vector, e.dimension
		FROM chunks c
		INNER JOIN chunk_embeddings e ON e.chunk_row_id = c.id
		WHERE c.workspace_id = ? AND e.is_zero = 0 AND e.dimension = ?
	`
	args := []interface{}{workspaceID, len(queryVector)}
	query, args = applySourceFilter(query, args, source)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]types.VectorCandidate, 0)
	for rows.Next() {
		var c types.VectorCandidate
		var src string
		var blob []byte
		var dimension int
		if err := rows.Scan(&c.ID, &c.Path, &src, &c.StartLine, &c.EndLine, &c.Snippet, &blob, &dimension); err != nil {
			return nil, err
		}
		vector, ok := deserializeVector(blob, dimension)
		if !ok {
			continue
		}
		c.Source = types.Source(src)
		c.Distance = 1 - cosineSimilarity(queryVector, vector)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// searchText runs a BM25 query against the FTS5 index. The rank of each hit
// is mapped so that 0 is best and weaker matches are more negative.
func searchText(ctx context.Context, db *sql.DB, workspaceID int64, query string, limit int, source types.Source) ([]types.LexicalCandidate, error) {
	match := BuildFTSQuery(query)
	if match == "" || limit <= 0 {
		return []types.LexicalCandidate{}, nil
	}

	sqlQuery := `
		SELECT c.chunk_id, c.path, c.source, c.start_line, c.end_line,
		       snippet(chunks_fts, 0, '', '', '...', 32) AS snip,
		       bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ? AND c.workspace_id = ?
	`
	args := []interface{}{match, workspaceID}
	sqlQuery, args = applySourceFilter(sqlQuery, args, source)

	// bm25 is lower for better matches
	sqlQuery += " ORDER BY score ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.LexicalCandidate, 0, limit)
	for rows.Next() {
		var c types.LexicalCandidate
		var src string
		var bm25 float64
		if err := rows.Scan(&c.ID, &c.Path, &src, &c.StartLine, &c.EndLine, &c.Snippet, &bm25); err != nil {
			return nil, err
		}
		c.Source = types.Source(src)
		c.Rank = types.LexicalRank(-bm25)
		results = append(results, c)
	}
	return results, rows.Err()
}

func applySourceFilter(query string, args []interface{}, source types.Source) (string, []interface{}) {
	if source == "" {
		return query, args
	}
	return query + " AND c.source = ?", append(args, string(source))
}

var ftsTokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// BuildFTSQuery turns free text into an FTS5 expression requiring every
// token. Each token is quoted so FTS5 operators in the input are literals.
// It returns "" when the text has no tokens.
func BuildFTSQuery(raw string) string {
	tokens := ftsTokenPattern.FindAllString(raw, -1)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, "") + `"`
	}
	return strings.Join(quoted, " AND ")
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector decodes a blob written by serializeVector. It reports
// false when the blob does not hold exactly dimension finite values.
func deserializeVector(blob []byte, dimension int) ([]float32, bool) {
	if dimension <= 0 || len(blob) != dimension*4 {
		return nil, false
	}
	vector := make([]float32, dimension)
	for i := range vector {
		v := math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, false
		}
		vector[i] = v
	}
	return vector, true
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
