// Package service wires the memory index for one owner and workspace.
//
// Open builds the SQLite store, the embedding choice, the lexical engine
// (FTS5, or the bleve mirror when configured or when FTS5 is missing),
// the sync and query engines, and the note store. The MCP server and the
// CLI both talk to a Service.
package service
