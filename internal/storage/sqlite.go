package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = fmt.Errorf("storage: %w", types.ErrNotFound)
)

var unsafeOwnerChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// DefaultDBPath returns the per-owner database file under dataDir
func DefaultDBPath(dataDir, owner string) string {
	if owner == "" {
		owner = "default"
	}
	return filepath.Join(dataDir, "memory_"+unsafeOwnerChars.ReplaceAllString(owner, "_")+".db")
}

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db           *sql.DB
	ftsAvailable bool
	now          func() time.Time
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Single connection: one writer, and ":memory:" stays one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) a database and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if _, err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='chunks_fts'").Scan(&name)
	s.ftsAvailable = err == nil

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// FTSAvailable reports whether the FTS5 lexical index exists
func (s *SQLiteStorage) FTSAvailable() bool {
	return s.ftsAvailable
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertDocument(ctx context.Context, workspaceID int64, doc types.Document) error {
	return t.storage.upsertDocumentWithQuerier(ctx, t.tx, workspaceID, doc)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, workspaceID int64, path string) error {
	return t.storage.deleteDocumentWithQuerier(ctx, t.tx, workspaceID, path)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, workspaceID int64, chunk *types.IndexedChunk) (int64, error) {
	return t.storage.upsertChunkWithQuerier(ctx, t.tx, workspaceID, chunk)
}

func (t *sqliteTx) DeleteChunksByPath(ctx context.Context, workspaceID int64, path string) (int, error) {
	return t.storage.deleteChunksByPathWithQuerier(ctx, t.tx, workspaceID, path)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

// Workspace operations

// EnsureWorkspace returns the workspace for (owner, rootPath), creating it if needed
func (s *SQLiteStorage) EnsureWorkspace(ctx context.Context, owner, rootPath string) (*Workspace, error) {
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (owner, root_path, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, root_path) DO NOTHING
	`, owner, rootPath, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return s.GetWorkspace(ctx, owner, rootPath)
}

// GetWorkspace loads a workspace by owner and root path
func (s *SQLiteStorage) GetWorkspace(ctx context.Context, owner, rootPath string) (*Workspace, error) {
	return scanWorkspace(s.db.QueryRowContext(ctx, `
		SELECT id, owner, root_path, last_synced_at, created_at, updated_at
		FROM workspaces
		WHERE owner = ? AND root_path = ?
	`, owner, rootPath))
}

func (s *SQLiteStorage) getWorkspaceByID(ctx context.Context, workspaceID int64) (*Workspace, error) {
	return scanWorkspace(s.db.QueryRowContext(ctx, `
		SELECT id, owner, root_path, last_synced_at, created_at, updated_at
		FROM workspaces
		WHERE id = ?
	`, workspaceID))
}

func scanWorkspace(row *sql.Row) (*Workspace, error) {
	var ws Workspace
	var lastSynced, created, updated int64
	err := row.Scan(&ws.ID, &ws.Owner, &ws.RootPath, &lastSynced, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSynced > 0 {
		ws.LastSyncedAt = time.UnixMilli(lastSynced)
	}
	ws.CreatedAt = time.UnixMilli(created)
	ws.UpdatedAt = time.UnixMilli(updated)
	return &ws, nil
}

// TouchWorkspace records the time of the last sync that wrote changes
func (s *SQLiteStorage) TouchWorkspace(ctx context.Context, workspaceID int64, syncedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE workspaces SET last_synced_at = ?, updated_at = ? WHERE id = ?",
		syncedAt.UnixMilli(), s.now().UnixMilli(), workspaceID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Document operations

func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, workspaceID int64, doc types.Document) error {
	query := `
		INSERT INTO documents (workspace_id, path, source, hash, mtime, size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, path) DO UPDATE SET
			source = excluded.source,
			hash = excluded.hash,
			mtime = excluded.mtime,
			size = excluded.size,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		workspaceID, doc.Path, string(doc.Source), doc.Hash,
		doc.ModTime.UnixMilli(), doc.Size, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, workspaceID int64, doc types.Document) error {
	return s.upsertDocumentWithQuerier(ctx, s.db, workspaceID, doc)
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, workspaceID int64, path string) (*types.Document, error) {
	var doc types.Document
	var source string
	var mtime int64
	err := s.db.QueryRowContext(ctx, `
		SELECT path, source, hash, mtime, size
		FROM documents
		WHERE workspace_id = ? AND path = ?
	`, workspaceID, path).Scan(&doc.Path, &source, &doc.Hash, &mtime, &doc.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.Source = types.Source(source)
	doc.ModTime = time.UnixMilli(mtime)
	return &doc, nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context, workspaceID int64) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, source, hash, mtime, size
		FROM documents
		WHERE workspace_id = ?
		ORDER BY path
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]types.Document, 0)
	for rows.Next() {
		var doc types.Document
		var source string
		var mtime int64
		if err := rows.Scan(&doc.Path, &source, &doc.Hash, &mtime, &doc.Size); err != nil {
			return nil, err
		}
		doc.Source = types.Source(source)
		doc.ModTime = time.UnixMilli(mtime)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) deleteDocumentWithQuerier(ctx context.Context, q querier, workspaceID int64, path string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM documents WHERE workspace_id = ? AND path = ?", workspaceID, path)
	return err
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, workspaceID int64, path string) error {
	return s.deleteDocumentWithQuerier(ctx, s.db, workspaceID, path)
}

// Chunk operations

// upsertChunkWithQuerier writes a chunk and returns its row id. A repeated
// chunk id overwrites the earlier row.
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, workspaceID int64, chunk *types.IndexedChunk) (int64, error) {
	updatedAt := chunk.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	query := `
		INSERT INTO chunks (
			workspace_id, chunk_id, path, source, start_line, end_line,
			hash, model, text, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, chunk_id) DO UPDATE SET
			path = excluded.path,
			source = excluded.source,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			hash = excluded.hash,
			model = excluded.model,
			text = excluded.text,
			updated_at = excluded.updated_at
		RETURNING id
	`
	var rowID int64
	err := q.QueryRowContext(ctx, query,
		workspaceID, chunk.ID, chunk.Path, string(chunk.Source),
		chunk.StartLine, chunk.EndLine, chunk.Hash, chunk.Model,
		chunk.Text, updatedAt.UnixMilli(),
	).Scan(&rowID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return rowID, nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, workspaceID int64, chunk *types.IndexedChunk) (int64, error) {
	return s.upsertChunkWithQuerier(ctx, s.db, workspaceID, chunk)
}

// ListChunksByPath returns a document's chunks with their embeddings, in line order
func (s *SQLiteStorage) ListChunksByPath(ctx context.Context, workspaceID int64, path string) ([]types.IndexedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.path, c.source, c.start_line, c.end_line, c.hash,
		       c.model, c.text, c.updated_at, e.vector, e.dimension
		FROM chunks c
		LEFT JOIN chunk_embeddings e ON e.chunk_row_id = c.id
		WHERE c.workspace_id = ? AND c.path = ?
		ORDER BY c.start_line, c.end_line
	`, workspaceID, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]types.IndexedChunk, 0)
	for rows.Next() {
		var c types.IndexedChunk
		var source string
		var updatedAt int64
		var blob []byte
		var dimension sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Path, &source, &c.StartLine, &c.EndLine,
			&c.Hash, &c.Model, &c.Text, &updatedAt, &blob, &dimension); err != nil {
			return nil, err
		}
		c.Source = types.Source(source)
		c.UpdatedAt = time.UnixMilli(updatedAt)
		if vec, ok := deserializeVector(blob, int(dimension.Int64)); ok {
			c.Embedding = vec
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) deleteChunksByPathWithQuerier(ctx context.Context, q querier, workspaceID int64, path string) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE workspace_id = ? AND path = ?", workspaceID, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteChunksByPath(ctx context.Context, workspaceID int64, path string) (int, error) {
	return s.deleteChunksByPathWithQuerier(ctx, s.db, workspaceID, path)
}

// CountChunks counts a workspace's chunks, optionally for one source
func (s *SQLiteStorage) CountChunks(ctx context.Context, workspaceID int64, source types.Source) (int, error) {
	query := "SELECT COUNT(*) FROM chunks WHERE workspace_id = ?"
	args := []interface{}{workspaceID}
	if source != "" {
		query += " AND source = ?"
		args = append(args, string(source))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	embedding.Dimension = len(embedding.Vector)
	embedding.IsZero = types.IsZeroVector(embedding.Vector)

	query := `
		INSERT INTO chunk_embeddings (chunk_row_id, vector, dimension, is_zero)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_row_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			is_zero = excluded.is_zero
	`
	_, err := q.ExecContext(ctx, query,
		embedding.ChunkRowID, serializeVector(embedding.Vector),
		embedding.Dimension, boolToInt(embedding.IsZero))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

// GetEmbedding loads a chunk row's embedding. An undecodable vector is
// reported as ErrNotFound.
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkRowID int64) (*Embedding, error) {
	var blob []byte
	var dimension, isZero int
	err := s.db.QueryRowContext(ctx,
		"SELECT vector, dimension, is_zero FROM chunk_embeddings WHERE chunk_row_id = ?",
		chunkRowID).Scan(&blob, &dimension, &isZero)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	vec, ok := deserializeVector(blob, dimension)
	if !ok {
		return nil, ErrNotFound
	}
	return &Embedding{
		ChunkRowID: chunkRowID,
		Vector:     vec,
		Dimension:  dimension,
		IsZero:     isZero != 0,
	}, nil
}

// ReplaceDocument atomically swaps a document's chunks for a new set
func (s *SQLiteStorage) ReplaceDocument(ctx context.Context, workspaceID int64, doc types.Document, chunks []types.IndexedChunk) (err error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.DeleteChunksByPath(ctx, workspaceID, doc.Path); err != nil {
		return err
	}
	if err = tx.UpsertDocument(ctx, workspaceID, doc); err != nil {
		return err
	}
	for i := range chunks {
		rowID, err := tx.UpsertChunk(ctx, workspaceID, &chunks[i])
		if err != nil {
			return err
		}
		if err := tx.UpsertEmbedding(ctx, &Embedding{ChunkRowID: rowID, Vector: chunks[i].Embedding}); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", doc.Path, err)
	}
	return nil
}

// RemoveDocument atomically deletes a document and its chunks
func (s *SQLiteStorage) RemoveDocument(ctx context.Context, workspaceID int64, path string) (err error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.DeleteChunksByPath(ctx, workspaceID, path); err != nil {
		return err
	}
	if err = tx.DeleteDocument(ctx, workspaceID, path); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal of %s: %w", path, err)
	}
	return nil
}

// Embedding cache operations

// GetCachedEmbedding looks up a memoized vector. Undecodable entries are misses.
func (s *SQLiteStorage) GetCachedEmbedding(ctx context.Context, key types.CacheKey) ([]float32, bool, error) {
	var blob []byte
	var dimension int
	err := s.db.QueryRowContext(ctx, `
		SELECT vector, dimension FROM embedding_cache
		WHERE provider = ? AND model = ? AND provider_key = ? AND hash = ?
	`, key.Provider, key.Model, key.ProviderKey, key.Hash).Scan(&blob, &dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, ok := deserializeVector(blob, dimension)
	if !ok || types.IsZeroVector(vec) {
		return nil, false, nil
	}
	return vec, true, nil
}

// PutCachedEmbedding stores a vector under key
func (s *SQLiteStorage) PutCachedEmbedding(ctx context.Context, key types.CacheKey, vector []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (provider, model, provider_key, hash, vector, dimension, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, model, provider_key, hash) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`, key.Provider, key.Model, key.ProviderKey, key.Hash,
		serializeVector(vector), len(vector), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return nil
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, workspaceID int64, vector []float32, limit int, source types.Source) ([]types.VectorCandidate, error) {
	return searchVector(ctx, s.db, workspaceID, vector, limit, source)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, workspaceID int64, query string, limit int, source types.Source) ([]types.LexicalCandidate, error) {
	if !s.ftsAvailable {
		return nil, ErrFTSUnavailable
	}
	return searchText(ctx, s.db, workspaceID, query, limit, source)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context, workspaceID int64) (*WorkspaceStatus, error) {
	ws, err := s.getWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	status := &WorkspaceStatus{Workspace: ws}

	counts := []struct {
		dest  *int
		query string
	}{
		{&status.DocumentsCount, "SELECT COUNT(*) FROM documents WHERE workspace_id = ?"},
		{&status.ChunksCount, "SELECT COUNT(*) FROM chunks WHERE workspace_id = ?"},
		{&status.VectorsCount, `
			SELECT COUNT(*) FROM chunk_embeddings e
			JOIN chunks c ON e.chunk_row_id = c.id
			WHERE c.workspace_id = ? AND e.is_zero = 0`},
		{&status.ZeroVectorsCount, `
			SELECT COUNT(*) FROM chunk_embeddings e
			JOIN chunks c ON e.chunk_row_id = c.id
			WHERE c.workspace_id = ? AND e.is_zero = 1`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, workspaceID).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_cache").Scan(&status.CacheEntries); err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSAvailable:       s.ftsAvailable,
		VectorSQL:          VectorExtensionAvailable,
	}

	return status, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
