package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/memcontext-mcp/internal/config"
	"github.com/dshills/memcontext-mcp/internal/embedder"
	"github.com/dshills/memcontext-mcp/internal/fulltext"
	"github.com/dshills/memcontext-mcp/internal/indexer"
	"github.com/dshills/memcontext-mcp/internal/notes"
	"github.com/dshills/memcontext-mcp/internal/searcher"
	"github.com/dshills/memcontext-mcp/internal/storage"
	"github.com/dshills/memcontext-mcp/internal/watcher"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

// Service is the memory index of one (owner, workspace) pair
type Service struct {
	cfg       *config.Config
	store     *storage.SQLiteStorage
	workspace *storage.Workspace
	choice    embedder.Choice
	mirror    *fulltext.Index
	lexical   searcher.LexicalEngine
	engine    *indexer.SyncEngine
	query     *searcher.QueryEngine
	notes     *notes.Store
	base      zerolog.Logger
	logger    zerolog.Logger
}

// Status summarizes the index for status reporting
type Status struct {
	Owner            string
	WorkspaceDir     string
	DBPath           string
	Enabled          bool
	Documents        int
	Chunks           int
	Vectors          int
	ZeroVectors      int
	CacheEntries     int
	IndexSizeMB      float64
	Provider         string
	Model            string
	Dimension        int
	LexicalEngine    string
	LexicalAvailable bool
	VectorSQL        bool
	Dirty            bool
	State            string
	LastSyncedAt     time.Time
}

// Open wires storage, embedding, engines and the note store for cfg
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (svc *Service, err error) {
	info, err := os.Stat(cfg.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: workspace dir: %v", types.ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: workspace dir %s is not a directory", types.ErrInvalidConfig, cfg.WorkspaceDir)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:    cfg,
		store:  store,
		base:   logger,
		logger: logger.With().Str("component", "service").Logger(),
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.workspace, err = store.EnsureWorkspace(ctx, cfg.Owner, cfg.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to register workspace: %w", err)
	}

	s.choice, err = embedder.NewChoice(cfg.Embedding, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure embeddings: %w", err)
	}

	var mirrors []indexer.Mirror
	switch {
	case cfg.LexicalEngine == config.EngineBleve:
		s.mirror, err = fulltext.New()
	case !store.FTSAvailable():
		s.logger.Warn().Msg("fts5 unavailable, falling back to bleve lexical engine")
		s.mirror, err = fulltext.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}
	if s.mirror != nil {
		s.lexical = s.mirror
		mirrors = append(mirrors, s.mirror)
	} else {
		s.lexical = storage.NewFTSEngine(store, s.workspace.ID)
	}

	s.engine, err = indexer.New(store, s.choice, cfg.IndexerConfig(s.workspace.ID), logger, mirrors...)
	if err != nil {
		return nil, err
	}

	s.query, err = searcher.New(s.lexical, storage.NewVectorIndex(store, s.workspace.ID), s.choice, s.engine, cfg.SearcherConfig(), logger)
	if err != nil {
		return nil, err
	}

	s.notes, err = notes.New(cfg.WorkspaceDir)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workspace", cfg.WorkspaceDir).
		Str("db", cfg.DBPath).
		Str("provider", s.choice.Name()).
		Str("lexical", s.lexical.Name()).
		Msg("memory index ready")
	return s, nil
}

// Config returns the resolved configuration
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Search runs a hybrid query, syncing first when changes are pending
func (s *Service) Search(ctx context.Context, req searcher.Request) (*searcher.Response, error) {
	return s.query.Search(ctx, req)
}

// Sync brings the index up to date with the workspace
func (s *Service) Sync(ctx context.Context, force bool) (*indexer.Statistics, error) {
	return s.engine.Sync(ctx, indexer.SyncOptions{Force: force})
}

// MarkDirty records a change observed outside the service
func (s *Service) MarkDirty() {
	s.engine.MarkDirty()
}

// Read returns a note, optionally restricted to a line window
func (s *Service) Read(path string, opts notes.ReadOptions) (string, error) {
	return s.notes.Read(path, opts)
}

// Store writes a note and indexes it
func (s *Service) Store(ctx context.Context, path, content string) (string, *indexer.Statistics, error) {
	rel, err := s.notes.Write(path, content)
	if err != nil {
		return "", nil, err
	}
	stats := s.resync(ctx)
	return rel, stats, nil
}

// Delete removes a note and drops it from the index
func (s *Service) Delete(ctx context.Context, path string) (string, *indexer.Statistics, error) {
	rel, err := s.notes.Delete(path)
	if err != nil {
		return "", nil, err
	}
	stats := s.resync(ctx)
	return rel, stats, nil
}

// resync marks the index dirty and syncs. The file operation has already
// succeeded, so sync errors are logged and the next search retries.
func (s *Service) resync(ctx context.Context) *indexer.Statistics {
	s.engine.MarkDirty()
	if !s.cfg.Enabled {
		return nil
	}
	stats, err := s.engine.Sync(ctx, indexer.SyncOptions{})
	if err != nil {
		s.logger.Warn().Err(err).Msg("sync after note change failed")
	}
	return stats
}

// Status reports index counts and engine state
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st, err := s.store.GetStatus(ctx, s.workspace.ID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Owner:            s.cfg.Owner,
		WorkspaceDir:     s.cfg.WorkspaceDir,
		DBPath:           s.cfg.DBPath,
		Enabled:          s.cfg.Enabled,
		Documents:        st.DocumentsCount,
		Chunks:           st.ChunksCount,
		Vectors:          st.VectorsCount,
		ZeroVectors:      st.ZeroVectorsCount,
		CacheEntries:     st.CacheEntries,
		IndexSizeMB:      st.IndexSizeMB,
		Provider:         s.choice.Name(),
		Model:            s.choice.Model(),
		Dimension:        s.choice.Dimension(),
		LexicalEngine:    s.lexical.Name(),
		LexicalAvailable: s.lexical.Available(),
		VectorSQL:        st.Health.VectorSQL,
		Dirty:            s.engine.Dirty(),
		State:            s.engine.State().String(),
	}
	if st.Workspace != nil {
		status.LastSyncedAt = st.Workspace.LastSyncedAt
	}
	return status, nil
}

// Watch marks the index dirty on workspace changes and syncs in the
// background until ctx is done
func (s *Service) Watch(ctx context.Context) error {
	kick := make(chan struct{}, 1)
	notify := func() {
		s.engine.MarkDirty()
		select {
		case kick <- struct{}{}:
		default:
		}
	}

	matcher := s.engine.Matcher()
	w, err := watcher.New(matcher.Root(), matcher, watcher.NotifierFunc(notify), s.cfg.Debounce, s.base)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	// Initial pass so the first query does not pay for it
	notify()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-kick:
				if !s.cfg.Enabled {
					continue
				}
				stats, err := s.engine.Sync(ctx, indexer.SyncOptions{})
				if err != nil {
					s.logger.Warn().Err(err).Msg("background sync failed")
					continue
				}
				if stats.Outcome == indexer.OutcomeCompleted {
					s.logger.Debug().Int("writes", stats.Writes()).Dur("duration", stats.Duration).Msg("background sync")
				}
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the embedder, lexical mirror and database
func (s *Service) Close() error {
	errs := []error{s.choice.Close()}
	if s.mirror != nil {
		errs = append(errs, s.mirror.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
