package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/memcontext-mcp/internal/notes"
)

// Tool names
const (
	ToolSearch = "memory_search"
	ToolGet    = "memory_get"
	ToolStore  = "memory_store"
	ToolDelete = "memory_delete"
	ToolSync   = "memory_sync"
	ToolStatus = "memory_status"
)

// searchTool returns the tool definition for memory_search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearch,
		Description: "Search workspace memory notes (MEMORY.md and memory/*.md) by meaning and keywords. Returns ranked snippets with file path and line range.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"maxResults": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results; omit to use the configured query.max_results",
					"minimum":     1,
					"maximum":     100,
				},
				"minScore": map[string]interface{}{
					"type":        "number",
					"description": "Minimum combined score (0.0-1.0); omit to use the configured query.min_score",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one source collection",
					"enum":        []string{"memory", "sessions"},
				},
			},
			Required: []string{"query"},
		},
	}
}

// getTool returns the tool definition for memory_get
func getTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGet,
		Description: "Read a memory note, optionally a window of lines. Use after memory_search to pull only the needed lines.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative path, e.g. memory/projects.md",
				},
				"from": map[string]interface{}{
					"type":        "integer",
					"description": "First line to return (1-based)",
					"minimum":     1,
				},
				"lines": map[string]interface{}{
					"type":        "integer",
					"description": "Number of lines to return",
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}

// storeTool returns the tool definition for memory_store
func storeTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolStore,
		Description: "Create or replace a Markdown memory note and index it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative .md path; parent directories are created",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full note content",
					"maxLength":   notes.MaxFileBytes,
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

// deleteTool returns the tool definition for memory_delete
func deleteTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolDelete,
		Description: "Delete a memory note and drop it from the index. MEMORY.md cannot be deleted.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative .md path",
				},
			},
			Required: []string{"path"},
		},
	}
}

// syncTool returns the tool definition for memory_sync
func syncTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSync,
		Description: "Bring the memory index up to date with the workspace files.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Run a pass even when no change is pending",
					"default":     false,
				},
			},
		},
	}
}

// statusTool returns the tool definition for memory_status
func statusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolStatus,
		Description: "Report memory index counts, embedding provider and engine availability.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
