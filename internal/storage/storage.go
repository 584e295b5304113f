package storage

import (
	"context"
	"time"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed notes
type Storage interface {
	// Workspace operations
	EnsureWorkspace(ctx context.Context, owner, rootPath string) (*Workspace, error)
	GetWorkspace(ctx context.Context, owner, rootPath string) (*Workspace, error)
	TouchWorkspace(ctx context.Context, workspaceID int64, syncedAt time.Time) error

	// Document operations
	UpsertDocument(ctx context.Context, workspaceID int64, doc types.Document) error
	GetDocument(ctx context.Context, workspaceID int64, path string) (*types.Document, error)
	ListDocuments(ctx context.Context, workspaceID int64) ([]types.Document, error)
	DeleteDocument(ctx context.Context, workspaceID int64, path string) error

	// Chunk operations
	UpsertChunk(ctx context.Context, workspaceID int64, chunk *types.IndexedChunk) (rowID int64, err error)
	ListChunksByPath(ctx context.Context, workspaceID int64, path string) ([]types.IndexedChunk, error)
	DeleteChunksByPath(ctx context.Context, workspaceID int64, path string) (deletedCount int, err error)
	CountChunks(ctx context.Context, workspaceID int64, source types.Source) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkRowID int64) (*Embedding, error)

	// Per-document units of atomicity
	ReplaceDocument(ctx context.Context, workspaceID int64, doc types.Document, chunks []types.IndexedChunk) error
	RemoveDocument(ctx context.Context, workspaceID int64, path string) error

	// Embedding cache operations
	GetCachedEmbedding(ctx context.Context, key types.CacheKey) ([]float32, bool, error)
	PutCachedEmbedding(ctx context.Context, key types.CacheKey, vector []float32) error

	// Search operations
	SearchVector(ctx context.Context, workspaceID int64, vector []float32, limit int, source types.Source) ([]types.VectorCandidate, error)
	SearchText(ctx context.Context, workspaceID int64, query string, limit int, source types.Source) ([]types.LexicalCandidate, error)
	FTSAvailable() bool

	// Status operations
	GetStatus(ctx context.Context, workspaceID int64) (*WorkspaceStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a write transaction
type Tx interface {
	Commit() error
	Rollback() error

	UpsertDocument(ctx context.Context, workspaceID int64, doc types.Document) error
	DeleteDocument(ctx context.Context, workspaceID int64, path string) error
	UpsertChunk(ctx context.Context, workspaceID int64, chunk *types.IndexedChunk) (rowID int64, err error)
	DeleteChunksByPath(ctx context.Context, workspaceID int64, path string) (deletedCount int, err error)
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
}

// Workspace is a note root owned by an opaque owner id
type Workspace struct {
	ID           int64
	Owner        string
	RootPath     string
	LastSyncedAt time.Time // Zero if never synced
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Embedding is the stored vector of one chunk row
type Embedding struct {
	ChunkRowID int64
	Vector     []float32
	Dimension  int
	IsZero     bool
}

// WorkspaceStatus contains statistics about an indexed workspace
type WorkspaceStatus struct {
	Workspace        *Workspace
	DocumentsCount   int
	ChunksCount      int
	VectorsCount     int // Chunks with a non-zero embedding
	ZeroVectorsCount int // Chunks stored with a degraded embedding
	CacheEntries     int
	IndexSizeMB      float64
	Health           HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSAvailable       bool
	VectorSQL          bool // Distances computed by sqlite-vec
}
