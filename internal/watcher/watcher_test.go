package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/internal/indexer"
)

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) MarkDirty() { n.calls.Add(1) }

func startWatcher(t *testing.T, root string) *countingNotifier {
	t.Helper()
	matcher, err := indexer.NewMatcher(root, indexer.DefaultSourceRules())
	require.NoError(t, err)

	notifier := &countingNotifier{}
	w, err := New(matcher.Root(), matcher, notifier, testInterval, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return notifier
}

func TestWatcher_DocumentWriteMarksDirty(t *testing.T) {
	root := t.TempDir()
	notifier := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "MEMORY.md"), []byte("# notes\n"), 0o644))

	assert.Eventually(t, func() bool { return notifier.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresNonDocuments(t *testing.T) {
	root := t.TempDir()
	notifier := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("readme\n"), 0o644))

	time.Sleep(6 * testInterval)
	assert.Equal(t, int32(0), notifier.calls.Load())
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	notifier := startWatcher(t, root)

	dir := filepath.Join(root, "memory")
	require.NoError(t, os.Mkdir(dir, 0o755))
	assert.Eventually(t, func() bool { return notifier.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	before := notifier.calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topic.md"), []byte("topic\n"), 0o644))
	assert.Eventually(t, func() bool { return notifier.calls.Load() > before }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_BurstCoalesces(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "MEMORY.md")
	require.NoError(t, os.WriteFile(path, []byte("v0\n"), 0o644))
	notifier := startWatcher(t, root)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte("version\n"), 0o644))
	}

	assert.Eventually(t, func() bool { return notifier.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(4 * testInterval)
	assert.LessOrEqual(t, notifier.calls.Load(), int32(2))
}

func TestWatcher_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), nil, NotifierFunc(func() {}), testInterval, zerolog.Nop())
	assert.Error(t, err)
}
