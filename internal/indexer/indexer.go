package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/memcontext-mcp/internal/chunker"
	"github.com/dshills/memcontext-mcp/internal/embedder"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

// DefaultWorkers bounds how many documents are indexed concurrently
const DefaultWorkers = 4

// Store is the persistence a sync pass writes through
type Store interface {
	ListDocuments(ctx context.Context, workspaceID int64) ([]types.Document, error)
	ReplaceDocument(ctx context.Context, workspaceID int64, doc types.Document, chunks []types.IndexedChunk) error
	RemoveDocument(ctx context.Context, workspaceID int64, path string) error
	ListChunksByPath(ctx context.Context, workspaceID int64, path string) ([]types.IndexedChunk, error)
	TouchWorkspace(ctx context.Context, workspaceID int64, syncedAt time.Time) error
}

// Mirror is a secondary index kept in step with the store
type Mirror interface {
	ReplaceChunks(path string, chunks []types.Chunk) error
	DeletePath(path string) error
}

// Config contains configuration for the sync engine
type Config struct {
	Root           string
	WorkspaceID    int64
	Sources        []SourceRule // Default: DefaultSourceRules()
	TokensPerChunk int
	OverlapTokens  int
	Workers        int  // Default: DefaultWorkers
	Disabled       bool // Sync returns types.ErrIndexingDisabled
}

// State is the engine's position in its Idle/Syncing cycle
type State int

const (
	StateIdle State = iota
	StateSyncing
)

func (s State) String() string {
	if s == StateSyncing {
		return "syncing"
	}
	return "idle"
}

// Outcome says what a Sync call did
type Outcome string

const (
	// OutcomeClean means nothing was pending and no pass ran
	OutcomeClean Outcome = "clean"
	// OutcomeBusy means a pass was already running; the call folded into it
	OutcomeBusy Outcome = "busy"
	// OutcomeCompleted means a pass ran
	OutcomeCompleted Outcome = "completed"
)

// SyncOptions modifies a single Sync call
type SyncOptions struct {
	Force bool // Run even when not dirty
}

// Statistics contains statistics about a sync call
type Statistics struct {
	Outcome           Outcome
	DocumentsIndexed  int
	DocumentsSkipped  int
	DocumentsRemoved  int
	DocumentsFailed   int
	PathsUnresolved   int
	ChunksWritten     int
	EmbeddingFailures int
	Duration          time.Duration
}

// Writes returns the number of documents written or removed
func (s *Statistics) Writes() int {
	return s.DocumentsIndexed + s.DocumentsRemoved
}

// SyncEngine keeps a workspace's index in step with its documents
type SyncEngine struct {
	store       Store
	choice      embedder.Choice
	chunker     *chunker.Chunker
	matcher     *Matcher
	mirrors     []Mirror
	workspaceID int64
	workers     int
	disabled    bool
	logger      zerolog.Logger

	lock  IndexLock
	dirty atomic.Bool
	now   func() time.Time

	// mirrorsSeeded is set once a pass has loaded every unchanged document
	// into the mirrors
	mirrorsSeeded bool
}

// New creates a SyncEngine. The engine starts dirty, so the first Sync runs.
func New(store Store, choice embedder.Choice, cfg Config, logger zerolog.Logger, mirrors ...Mirror) (*SyncEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", types.ErrInvalidConfig)
	}
	if cfg.TokensPerChunk <= 0 {
		return nil, fmt.Errorf("%w: tokens per chunk must be positive", types.ErrInvalidConfig)
	}
	if cfg.OverlapTokens < 0 {
		return nil, fmt.Errorf("%w: overlap tokens cannot be negative", types.ErrInvalidConfig)
	}
	matcher, err := NewMatcher(cfg.Root, cfg.Sources)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	e := &SyncEngine{
		store:       store,
		choice:      choice,
		chunker:     chunker.New(cfg.TokensPerChunk, cfg.OverlapTokens),
		matcher:     matcher,
		mirrors:     mirrors,
		workspaceID: cfg.WorkspaceID,
		workers:     workers,
		disabled:    cfg.Disabled,
		logger:      logger.With().Str("component", "sync").Logger(),
		now:         time.Now,
	}
	e.dirty.Store(true)
	return e, nil
}

// Matcher returns the discovery matcher, for change-notification adapters
func (e *SyncEngine) Matcher() *Matcher {
	return e.matcher
}

// MarkDirty records that documents may have changed
func (e *SyncEngine) MarkDirty() {
	e.dirty.Store(true)
}

// Dirty reports whether a change is pending
func (e *SyncEngine) Dirty() bool {
	return e.dirty.Load()
}

// State reports whether a pass is running
func (e *SyncEngine) State() State {
	if e.lock.Held() {
		return StateSyncing
	}
	return StateIdle
}

// Sync runs a pass when dirty or forced. It returns immediately with
// OutcomeBusy if a pass is already running.
func (e *SyncEngine) Sync(ctx context.Context, opts SyncOptions) (*Statistics, error) {
	if e.disabled {
		return nil, types.ErrIndexingDisabled
	}
	if !opts.Force && !e.dirty.Load() {
		return &Statistics{Outcome: OutcomeClean}, nil
	}
	if !e.lock.TryAcquire() {
		return &Statistics{Outcome: OutcomeBusy}, nil
	}
	defer e.lock.Release()

	// Cleared before the pass so notifications arriving mid-pass survive it
	e.dirty.Store(false)

	stats, err := e.runPass(ctx)
	if err != nil {
		e.dirty.Store(true)
		return stats, err
	}
	// Failed and unreadable documents are retried by the next sync
	if stats.DocumentsFailed > 0 || stats.PathsUnresolved > 0 {
		e.dirty.Store(true)
	}
	return stats, nil
}

// documentResult is the outcome of syncing one document
type documentResult struct {
	skipped       bool
	chunks        int
	embedFailures int
}

func (e *SyncEngine) runPass(ctx context.Context) (*Statistics, error) {
	start := time.Now()
	stats := &Statistics{Outcome: OutcomeCompleted}

	files, unresolved, err := e.matcher.Discover(ctx)
	if err != nil {
		return stats, err
	}
	for _, path := range unresolved {
		e.logger.Warn().Str("path", path).Msg("cannot read path, keeping its documents as indexed")
	}
	stats.PathsUnresolved = len(unresolved)

	stored, err := e.store.ListDocuments(ctx, e.workspaceID)
	if err != nil {
		return stats, fmt.Errorf("failed to list indexed documents: %w", err)
	}
	storedByPath := make(map[string]types.Document, len(stored))
	for _, doc := range stored {
		storedByPath[doc.Path] = doc
	}

	var indexed, skipped, failed, chunks, embedFailures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, file := range files {
		prev, known := storedByPath[file.Path]
		g.Go(func() error {
			var previous *types.Document
			if known {
				previous = &prev
			}
			result, err := e.syncDocument(gctx, file, previous)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				e.logger.Warn().Err(err).Str("path", file.Path).Msg("failed to index document")
				return nil
			}
			if result.skipped {
				skipped.Add(1)
				return nil
			}
			indexed.Add(1)
			chunks.Add(int32(result.chunks))
			embedFailures.Add(int32(result.embedFailures))
			return nil
		})
	}
	waitErr := g.Wait()

	stats.DocumentsIndexed = int(indexed.Load())
	stats.DocumentsSkipped = int(skipped.Load())
	stats.DocumentsFailed = int(failed.Load())
	stats.ChunksWritten = int(chunks.Load())
	stats.EmbeddingFailures = int(embedFailures.Load())

	if waitErr != nil {
		stats.Duration = time.Since(start)
		return stats, waitErr
	}
	e.mirrorsSeeded = true

	discovered := make(map[string]bool, len(files))
	for _, file := range files {
		discovered[file.Path] = true
	}
	for _, doc := range stored {
		if discovered[doc.Path] || covered(doc.Path, unresolved) {
			continue
		}
		if err := e.removeDocument(ctx, doc.Path); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				stats.Duration = time.Since(start)
				return stats, ctxErr
			}
			stats.DocumentsFailed++
			e.logger.Warn().Err(err).Str("path", doc.Path).Msg("failed to remove document")
			continue
		}
		stats.DocumentsRemoved++
	}

	if stats.Writes() > 0 {
		if err := e.store.TouchWorkspace(ctx, e.workspaceID, e.now()); err != nil {
			e.logger.Warn().Err(err).Msg("failed to record sync time")
		}
	}

	stats.Duration = time.Since(start)
	e.logger.Info().
		Int("indexed", stats.DocumentsIndexed).
		Int("skipped", stats.DocumentsSkipped).
		Int("removed", stats.DocumentsRemoved).
		Int("failed", stats.DocumentsFailed).
		Int("chunks", stats.ChunksWritten).
		Int("embedding_failures", stats.EmbeddingFailures).
		Dur("duration", stats.Duration).
		Msg("sync completed")

	return stats, nil
}

// syncDocument re-indexes one document unless its fingerprint is unchanged
func (e *SyncEngine) syncDocument(ctx context.Context, file DiscoveredFile, previous *types.Document) (documentResult, error) {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return documentResult{}, err
	}
	info, err := os.Stat(file.AbsPath)
	if err != nil {
		return documentResult{}, err
	}

	hash := types.Fingerprint(content)
	if previous != nil && previous.Hash == hash {
		if !e.mirrorsSeeded {
			e.seedMirrors(ctx, file.Path)
		}
		return documentResult{skipped: true}, nil
	}

	doc := types.Document{
		Path:    file.Path,
		Source:  file.Source,
		Hash:    hash,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}

	chunks := indexableChunks(e.chunker.ChunkDocument(file.Path, file.Source, string(content)))
	vectors, embedFailed := e.embed(ctx, file.Path, chunks)
	if err := ctx.Err(); err != nil {
		return documentResult{}, err
	}

	now := e.now()
	indexed := make([]types.IndexedChunk, len(chunks))
	for i, c := range chunks {
		indexed[i] = types.IndexedChunk{
			Chunk:     c,
			Embedding: vectors[i],
			Model:     e.choice.Model(),
			UpdatedAt: now,
		}
	}

	if err := e.store.ReplaceDocument(ctx, e.workspaceID, doc, indexed); err != nil {
		return documentResult{}, err
	}
	for _, m := range e.mirrors {
		if err := m.ReplaceChunks(file.Path, chunks); err != nil {
			e.logger.Warn().Err(err).Str("path", file.Path).Msg("failed to update mirror index")
		}
	}

	result := documentResult{chunks: len(chunks)}
	if embedFailed {
		result.embedFailures = 1
	}
	return result, nil
}

// embed requests one vector per chunk in a single batch. Without a provider,
// or when the request fails, every chunk gets a zero vector.
func (e *SyncEngine) embed(ctx context.Context, path string, chunks []types.Chunk) ([][]float32, bool) {
	if len(chunks) == 0 {
		return nil, false
	}
	if e.choice.Kind() == embedder.KindDisabled {
		return e.choice.ZeroVectors(len(chunks)), false
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := e.choice.Embed(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("%w: got %d vectors for %d texts", embedder.ErrProviderFailed, len(vectors), len(texts))
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.Warn().Err(err).Str("path", path).Msg("embedding failed, storing zero vectors")
		}
		return e.choice.ZeroVectors(len(chunks)), true
	}
	return vectors, false
}

// seedMirrors copies a document's stored chunks into the mirrors
func (e *SyncEngine) seedMirrors(ctx context.Context, path string) {
	if len(e.mirrors) == 0 {
		return
	}
	stored, err := e.store.ListChunksByPath(ctx, e.workspaceID, path)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("failed to load chunks for mirror index")
		return
	}
	chunks := make([]types.Chunk, len(stored))
	for i := range stored {
		chunks[i] = stored[i].Chunk
	}
	for _, m := range e.mirrors {
		if err := m.ReplaceChunks(path, chunks); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("failed to update mirror index")
		}
	}
}

func (e *SyncEngine) removeDocument(ctx context.Context, path string) error {
	if err := e.store.RemoveDocument(ctx, e.workspaceID, path); err != nil {
		return err
	}
	for _, m := range e.mirrors {
		if err := m.DeletePath(path); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("failed to update mirror index")
		}
	}
	return nil
}

// indexableChunks drops chunks with no visible text
func indexableChunks(chunks []types.Chunk) []types.Chunk {
	kept := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			kept = append(kept, c)
		}
	}
	return kept
}
