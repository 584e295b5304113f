package notes

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRead(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Write("memory/day.md", "one\ntwo\nthree\nfour")
	require.NoError(t, err)

	tests := []struct {
		name string
		opts ReadOptions
		want string
	}{
		{"whole file", ReadOptions{}, "one\ntwo\nthree\nfour"},
		{"from line", ReadOptions{From: 3}, "three\nfour"},
		{"window", ReadOptions{From: 2, Lines: 2}, "two\nthree"},
		{"window past end", ReadOptions{From: 4, Lines: 10}, "four"},
		{"from past end", ReadOptions{From: 9}, ""},
		{"lines only", ReadOptions{Lines: 1}, "one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Read("memory/day.md", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_Errors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read("missing.md", ReadOptions{})
	assert.ErrorIs(t, err, types.ErrNotFound)

	for _, path := range []string{"", "../outside.md", "memory/../../x.md", "/etc/passwd", "."} {
		_, err := s.Read(path, ReadOptions{})
		assert.ErrorIs(t, err, types.ErrInvalidPath, "path %q", path)
	}

	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "memory"), 0o755))
	_, err = s.Read("memory", ReadOptions{})
	assert.ErrorIs(t, err, types.ErrInvalidPath)
}

func TestRead_TooLarge(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Root(), "big.md")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxFileBytes+1))
	require.NoError(t, f.Close())

	_, err = s.Read("big.md", ReadOptions{})
	assert.ErrorIs(t, err, types.ErrFileTooLarge)
}

func TestWrite(t *testing.T) {
	s := newTestStore(t)

	rel, err := s.Write("memory/2024/01/02.md", "hello")
	require.NoError(t, err)
	assert.Equal(t, "memory/2024/01/02.md", rel)

	data, err := os.ReadFile(filepath.Join(s.Root(), "memory", "2024", "01", "02.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	rel, err = s.Write("memory/./x/../y.md", "y")
	require.NoError(t, err)
	assert.Equal(t, "memory/y.md", rel)

	_, err = s.Write("notes.txt", "x")
	assert.ErrorIs(t, err, types.ErrInvalidPath)

	_, err = s.Write("../escape.md", "x")
	assert.ErrorIs(t, err, types.ErrInvalidPath)

	_, err = s.Write("huge.md", strings.Repeat("x", MaxFileBytes+1))
	assert.ErrorIs(t, err, types.ErrFileTooLarge)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Write("MEMORY.md", "main")
	require.NoError(t, err)
	_, err = s.Write("memory/old.md", "old")
	require.NoError(t, err)

	rel, err := s.Delete("memory/old.md")
	require.NoError(t, err)
	assert.Equal(t, "memory/old.md", rel)
	_, err = os.Stat(filepath.Join(s.Root(), "memory", "old.md"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.Delete("memory/old.md")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.Delete("MEMORY.md")
	assert.ErrorIs(t, err, types.ErrProtectedPath)
	_, err = s.Delete("memory.md")
	assert.ErrorIs(t, err, types.ErrProtectedPath)

	_, err = s.Delete("memory/file.txt")
	assert.ErrorIs(t, err, types.ErrInvalidPath)
}

func TestSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	s := newTestStore(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(s.Root(), "link")))

	_, err := s.Read("link/secret.md", ReadOptions{})
	assert.ErrorIs(t, err, types.ErrInvalidPath)

	_, err = s.Write("link/new.md", "x")
	assert.ErrorIs(t, err, types.ErrInvalidPath)
	_, err = os.Stat(filepath.Join(outside, "new.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}
