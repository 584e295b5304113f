// Package types provides shared type definitions for the memcontext MCP server.
//
// # Documents and Chunks
//
// A Document is a note file tracked by its path relative to the workspace root.
// Its content fingerprint (hex SHA-256) decides whether a sync pass needs to
// re-chunk it. A Chunk is a span of the document's lines identified by
//
//	types.ChunkID("memory/notes.md", 12, 40) // "memory/notes.md:12-40"
//
// The id format is exposed to callers and must not change.
//
// # Candidates
//
// Index engines return VectorCandidate (cosine distance) or LexicalCandidate
// (native rank, 0 best). The hybrid package normalizes both into
// ScoredCandidate and merges them into MergedResult.
package types
