package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/memcontext-mcp/internal/indexer"
	"github.com/dshills/memcontext-mcp/internal/notes"
	"github.com/dshills/memcontext-mcp/internal/searcher"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingDisabled = -32001 // Memory search is turned off
	ErrorCodeNotFound         = -32002 // Note does not exist
)

// handleSearch handles the memory_search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing",
		})
	}

	// 0 lets the query engine apply the configured limit
	maxResults := 0
	if _, present := args["maxResults"]; present {
		maxResults = getIntDefault(args, "maxResults", 0)
		if maxResults < 1 || maxResults > 100 {
			return nil, newMCPError(ErrorCodeInvalidParams, "maxResults must be between 1 and 100", map[string]interface{}{
				"param": "maxResults",
				"value": args["maxResults"],
			})
		}
	}

	req := searcher.Request{
		Query:      query,
		MaxResults: maxResults,
		Source:     types.Source(getStringDefault(args, "source", "")),
	}
	if v, ok := args["minScore"].(float64); ok {
		req.MinScore = &v
	}

	resp, err := s.backend.Search(ctx, req)
	if err != nil {
		return nil, toMCPError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":    i + 1,
			"path":    r.Path,
			"lines":   fmt.Sprintf("%d-%d", r.StartLine, r.EndLine),
			"score":   math.Round(r.Score*1000) / 1000,
			"snippet": r.Snippet,
			"source":  string(r.Source),
		})
	}

	s.logger.Debug().Int("results", len(results)).Dur("duration", resp.Duration).Msg("memory_search")

	response := map[string]interface{}{
		"query":       query,
		"resultCount": len(results),
		"vectorLeg":   resp.VectorLegUsed,
		"lexicalLeg":  resp.LexicalLegUsed,
		"results":     results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGet handles the memory_get tool invocation
func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	opts := notes.ReadOptions{
		From:  getIntDefault(args, "from", 0),
		Lines: getIntDefault(args, "lines", 0),
	}
	if opts.From < 0 || opts.Lines < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "from and lines must be positive", map[string]interface{}{
			"from":  opts.From,
			"lines": opts.Lines,
		})
	}

	text, err := s.backend.Read(path, opts)
	if err != nil {
		return nil, toMCPError("read failed", err)
	}
	return mcp.NewToolResultText(text), nil
}

// handleStore handles the memory_store tool invocation
func (s *Server) handleStore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing",
		})
	}

	rel, stats, err := s.backend.Store(ctx, path, content)
	if err != nil {
		return nil, toMCPError("store failed", err)
	}

	response := map[string]interface{}{
		"stored": true,
		"path":   rel,
		"bytes":  len(content),
	}
	if stats != nil {
		response["sync"] = statisticsJSON(stats)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDelete handles the memory_delete tool invocation
func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	rel, stats, err := s.backend.Delete(ctx, path)
	if err != nil {
		return nil, toMCPError("delete failed", err)
	}

	response := map[string]interface{}{
		"deleted": true,
		"path":    rel,
	}
	if stats != nil {
		response["sync"] = statisticsJSON(stats)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSync handles the memory_sync tool invocation
func (s *Server) handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := arguments(request)

	stats, err := s.backend.Sync(ctx, getBoolDefault(args, "force", false))
	if err != nil {
		return nil, toMCPError("sync failed", err)
	}
	return mcp.NewToolResultText(formatJSON(statisticsJSON(stats))), nil
}

// handleStatus handles the memory_status tool invocation
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.backend.Status(ctx)
	if err != nil {
		return nil, toMCPError("failed to get status", err)
	}

	lastSynced := ""
	if !status.LastSyncedAt.IsZero() {
		lastSynced = status.LastSyncedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"workspace": status.WorkspaceDir,
		"owner":     status.Owner,
		"enabled":   status.Enabled,
		"statistics": map[string]interface{}{
			"documents":     status.Documents,
			"chunks":        status.Chunks,
			"vectors":       status.Vectors,
			"zero_vectors":  status.ZeroVectors,
			"cache_entries": status.CacheEntries,
			"index_size_mb": fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"embedding": map[string]interface{}{
			"provider":  status.Provider,
			"model":     status.Model,
			"dimension": status.Dimension,
		},
		"engines": map[string]interface{}{
			"lexical":           status.LexicalEngine,
			"lexical_available": status.LexicalAvailable,
			"vector_sql":        status.VectorSQL,
		},
		"sync": map[string]interface{}{
			"dirty":          status.Dirty,
			"state":          status.State,
			"last_synced_at": lastSynced,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func statisticsJSON(stats *indexer.Statistics) map[string]interface{} {
	return map[string]interface{}{
		"outcome":            string(stats.Outcome),
		"documents_indexed":  stats.DocumentsIndexed,
		"documents_skipped":  stats.DocumentsSkipped,
		"documents_removed":  stats.DocumentsRemoved,
		"documents_failed":   stats.DocumentsFailed,
		"paths_unresolved":   stats.PathsUnresolved,
		"chunks_written":     stats.ChunksWritten,
		"embedding_failures": stats.EmbeddingFailures,
		"duration_ms":        stats.Duration.Milliseconds(),
	}
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, true
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	return path, nil
}

// toMCPError maps domain errors onto MCP error codes
func toMCPError(message string, err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, types.ErrIndexingDisabled):
		return newMCPError(ErrorCodeIndexingDisabled, "memory search is disabled", data)
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeNotFound, "note not found", data)
	case errors.Is(err, types.ErrInvalidPath),
		errors.Is(err, types.ErrProtectedPath),
		errors.Is(err, types.ErrFileTooLarge),
		errors.Is(err, types.ErrInvalidConfig):
		return newMCPError(ErrorCodeInvalidParams, message, data)
	default:
		return newMCPError(ErrorCodeInternalError, message, data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
