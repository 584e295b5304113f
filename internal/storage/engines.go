package storage

import (
	"context"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// FTSEngine is the FTS5 lexical index of one workspace
type FTSEngine struct {
	store       Storage
	workspaceID int64
}

// NewFTSEngine binds the lexical index of store to a workspace
func NewFTSEngine(store Storage, workspaceID int64) *FTSEngine {
	return &FTSEngine{store: store, workspaceID: workspaceID}
}

// Name identifies the engine in logs and status output
func (e *FTSEngine) Name() string { return "fts5" }

// Available reports whether the FTS5 table exists
func (e *FTSEngine) Available() bool { return e.store.FTSAvailable() }

// SearchLexical returns up to limit lexical hits, best first
func (e *FTSEngine) SearchLexical(ctx context.Context, query string, limit int, source types.Source) ([]types.LexicalCandidate, error) {
	return e.store.SearchText(ctx, e.workspaceID, query, limit, source)
}

// VectorIndex is the stored embeddings of one workspace
type VectorIndex struct {
	store       Storage
	workspaceID int64
}

// NewVectorIndex binds the vector index of store to a workspace
func NewVectorIndex(store Storage, workspaceID int64) *VectorIndex {
	return &VectorIndex{store: store, workspaceID: workspaceID}
}

// SearchVector returns up to limit nearest chunks, nearest first
func (v *VectorIndex) SearchVector(ctx context.Context, vector []float32, limit int, source types.Source) ([]types.VectorCandidate, error) {
	return v.store.SearchVector(ctx, v.workspaceID, vector, limit, source)
}
