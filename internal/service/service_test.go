package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/internal/config"
	"github.com/dshills/memcontext-mcp/internal/indexer"
	"github.com/dshills/memcontext-mcp/internal/notes"
	"github.com/dshills/memcontext-mcp/internal/searcher"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// seedWorkspace writes two documents about programming languages among
// unrelated notes so the lexical terms stay selective. rust.md repeats the
// query terms and outranks MEMORY.md.
func seedWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeDoc(t, root, "MEMORY.md", "# Memory\nGo is a compiled programming language.\n")
	writeDoc(t, root, "memory/rust.md", "Rust is a programming language.\nProgramming language safety matters.\n")
	writeDoc(t, root, "memory/garden.md", "Tomatoes need sun and water.\n")
	writeDoc(t, root, "memory/travel.md", "Trains to the coast leave hourly.\n")
	writeDoc(t, root, "memory/music.md", "Practice scales before the concert.\n")
	return root
}

func openService(t *testing.T, root string, mutate func(f *config.File)) *Service {
	t.Helper()
	f := &config.File{WorkspaceDir: root, DataDir: t.TempDir()}
	f.Embedding.Provider = "none"
	if mutate != nil {
		mutate(f)
	}
	cfg, err := f.Resolve(func(string) string { return "" })
	require.NoError(t, err)

	svc, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func zeroMin() *float64 {
	v := 0.0
	return &v
}

func TestService_LexicalOnlySearch(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, nil)

	resp, err := svc.Search(context.Background(), searcher.Request{Query: "programming language", MinScore: zeroMin()})
	require.NoError(t, err)

	assert.False(t, resp.VectorLegUsed)
	assert.True(t, resp.LexicalLegUsed)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "memory/rust.md", resp.Results[0].Path)
	assert.Equal(t, "MEMORY.md", resp.Results[1].Path)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
	for _, r := range resp.Results {
		assert.Greater(t, r.Score, 0.0)
		assert.Equal(t, types.SourceMemory, r.Source)
	}
}

func TestService_BleveEngine(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, func(f *config.File) { f.Query.LexicalEngine = config.EngineBleve })

	resp, err := svc.Search(context.Background(), searcher.Request{Query: "programming language", MinScore: zeroMin()})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bleve", status.LexicalEngine)
	assert.True(t, status.LexicalAvailable)
}

func TestService_LocalEmbeddings(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, func(f *config.File) {
		f.Embedding.Provider = "local"
		dim := 64
		f.Embedding.Dimension = &dim
	})

	resp, err := svc.Search(context.Background(), searcher.Request{Query: "programming language", MinScore: zeroMin()})
	require.NoError(t, err)
	assert.True(t, resp.VectorLegUsed)
	assert.True(t, resp.LexicalLegUsed)
	require.NotEmpty(t, resp.Results)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", status.Provider)
	assert.Equal(t, 64, status.Dimension)
	assert.Equal(t, 5, status.Vectors)
	assert.Equal(t, 0, status.ZeroVectors)
}

func TestService_StoreAndDelete(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, nil)
	ctx := context.Background()

	_, err := svc.Sync(ctx, false)
	require.NoError(t, err)

	rel, stats, err := svc.Store(ctx, "memory/kotlin.md", "Kotlin is a programming language for the JVM.\n")
	require.NoError(t, err)
	assert.Equal(t, "memory/kotlin.md", rel)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.DocumentsIndexed)

	resp, err := svc.Search(ctx, searcher.Request{Query: "kotlin", MinScore: zeroMin()})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "memory/kotlin.md", resp.Results[0].Path)

	text, err := svc.Read("memory/kotlin.md", notes.ReadOptions{})
	require.NoError(t, err)
	assert.Contains(t, text, "JVM")

	_, stats, err = svc.Delete(ctx, "memory/kotlin.md")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsRemoved)

	resp, err = svc.Search(ctx, searcher.Request{Query: "kotlin", MinScore: zeroMin()})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	_, _, err = svc.Delete(ctx, "MEMORY.md")
	assert.True(t, errors.Is(err, types.ErrProtectedPath))
}

func TestService_Status(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, nil)
	ctx := context.Background()

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Dirty)
	assert.True(t, status.LastSyncedAt.IsZero())

	stats, err := svc.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, indexer.OutcomeCompleted, stats.Outcome)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Dirty)
	assert.Equal(t, 5, status.Documents)
	assert.Equal(t, 5, status.Chunks)
	assert.Equal(t, "none", status.Provider)
	assert.Equal(t, "fts5", status.LexicalEngine)
	assert.Equal(t, indexer.StateIdle.String(), status.State)
	assert.False(t, status.LastSyncedAt.IsZero())
}

func TestService_Disabled(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, func(f *config.File) {
		off := false
		f.Enabled = &off
	})

	_, err := svc.Search(context.Background(), searcher.Request{Query: "go"})
	assert.True(t, errors.Is(err, types.ErrIndexingDisabled))

	_, err = svc.Sync(context.Background(), true)
	assert.True(t, errors.Is(err, types.ErrIndexingDisabled))
}

func TestService_MissingWorkspace(t *testing.T) {
	f := &config.File{WorkspaceDir: filepath.Join(t.TempDir(), "absent"), DataDir: t.TempDir()}
	cfg, err := f.Resolve(func(string) string { return "" })
	require.NoError(t, err)

	_, err = Open(context.Background(), cfg, zerolog.Nop())
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))
}

func TestService_WatchSyncsChanges(t *testing.T) {
	root := seedWorkspace(t)
	svc := openService(t, root, func(f *config.File) { f.Sync.Debounce = "50ms" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	assert.Eventually(t, func() bool {
		st, err := svc.Status(context.Background())
		return err == nil && st.Documents == 5 && !st.Dirty
	}, 5*time.Second, 25*time.Millisecond)

	writeDoc(t, root, "memory/haskell.md", "Haskell is a lazy functional language.\n")

	assert.Eventually(t, func() bool {
		st, err := svc.Status(context.Background())
		return err == nil && st.Documents == 6
	}, 5*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
