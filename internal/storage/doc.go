// Package storage provides SQLite-based persistence for indexed notes.
//
// One database file holds every workspace of an owner (see DefaultDBPath).
// The storage layer manages:
//   - Workspaces (owner, root path, last sync time)
//   - Documents and their content fingerprints
//   - Chunks with their line ranges and text
//   - One embedding per chunk, flagged when it is a zero vector
//   - A persistent embedding cache keyed by provider, model and text hash
//   - An FTS5 index over chunk text, kept current by triggers
//
// # Database Schema
//
// Tables:
//   - schema_version, meta: bookkeeping
//   - workspaces: UNIQUE(owner, root_path)
//   - documents: UNIQUE(workspace_id, path)
//   - chunks: UNIQUE(workspace_id, chunk_id)
//   - chunk_embeddings: vector BLOB (little-endian float32), dimension, is_zero
//   - embedding_cache: PRIMARY KEY(provider, model, provider_key, hash)
//   - chunks_fts: external-content FTS5 table over chunks.text
//
// The FTS5 migration is optional. When the driver lacks FTS5 the database
// still opens and FTSAvailable reports false.
//
// # Units of Atomicity
//
// ReplaceDocument and RemoveDocument each run in one transaction, so a
// reader sees either the old or the new chunk set of a document, never a mix:
//
//	err := store.ReplaceDocument(ctx, ws.ID, doc, chunks)
//
// # Search
//
// SearchVector orders chunks by cosine distance (0 identical, 2 opposite).
// SearchText orders FTS5 hits by bm25 and reports a rank where 0 is best and
// weaker matches are more negative. FTSEngine and VectorIndex bind both to a
// workspace for the query engine.
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite, which includes FTS5
//
//   - Cosine distances computed in Go
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3
//
//   - Registers sqlite-vec and computes distances with vec_distance_cosine
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...
package storage
