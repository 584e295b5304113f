// Package mcp exposes the memory index as Model Context Protocol tools.
//
// The server speaks JSON-RPC 2.0 over stdio and registers six tools:
//   - memory_search: hybrid search over MEMORY.md and memory/**/*.md
//   - memory_get: read a note, optionally a window of lines
//   - memory_store: create or replace a note, then sync
//   - memory_delete: delete a note (MEMORY.md is protected), then sync
//   - memory_sync: bring the index up to date
//   - memory_status: counts, provider and engine state
//
// # Tool: memory_search
//
//	Request:
//	{
//	  "name": "memory_search",
//	  "arguments": {"query": "deploy key rotation", "maxResults": 6, "minScore": 0.35}
//	}
//
//	Response:
//	{
//	  "query": "deploy key rotation",
//	  "resultCount": 1,
//	  "vectorLeg": true,
//	  "lexicalLeg": true,
//	  "results": [
//	    {"rank": 1, "path": "MEMORY.md", "lines": "1-3", "score": 0.812,
//	     "snippet": "The deploy key rotates every ninety days.", "source": "memory"}
//	  ]
//	}
//
// # Errors
//
// Handlers return *MCPError with JSON-RPC style codes:
//
//	-32602  invalid params (bad path, protected note, file too large)
//	-32603  internal error
//	-32001  memory search is disabled
//	-32002  note not found
//
// Search itself degrades rather than failing: an unavailable lexical
// engine or a failed query embedding drops that leg, and a failed sync
// before the query is logged while the search runs on committed state.
package mcp
