package notes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// MaxFileBytes limits the size of notes read or written
const MaxFileBytes = 10 * 1024 * 1024

// protectedNames cannot be deleted
var protectedNames = map[string]bool{
	"MEMORY.md": true,
	"memory.md": true,
}

// Store reads and writes note files confined to a workspace root
type Store struct {
	root string
}

// New creates a Store rooted at root
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: workspace root is required", types.ErrInvalidConfig)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: workspace root: %v", types.ErrInvalidConfig, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute workspace root
func (s *Store) Root() string {
	return s.root
}

// ReadOptions selects a window of lines. From is 1-based; Lines 0 means
// through the end. The zero value reads the whole note.
type ReadOptions struct {
	From  int
	Lines int
}

// Read returns a note's text, or the requested window of its lines
func (s *Store) Read(path string, opts ReadOptions) (string, error) {
	rel, abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", types.ErrNotFound, rel)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", types.ErrInvalidPath, rel)
	}
	if info.Size() > MaxFileBytes {
		return "", fmt.Errorf("%w: %s is %.2fMB, limit is 10MB", types.ErrFileTooLarge, rel, float64(info.Size())/1024/1024)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if opts.From <= 0 && opts.Lines <= 0 {
		return string(content), nil
	}
	return window(string(content), opts), nil
}

func window(content string, opts ReadOptions) string {
	lines := strings.Split(content, "\n")
	start := max(0, opts.From-1)
	if start >= len(lines) {
		return ""
	}
	end := len(lines)
	if opts.Lines > 0 {
		end = min(end, start+opts.Lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// Write creates or replaces a Markdown note, creating parent directories.
// It returns the cleaned relative path.
func (s *Store) Write(path, content string) (string, error) {
	rel, abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(rel, ".md") {
		return "", fmt.Errorf("%w: only .md files can be stored", types.ErrInvalidPath)
	}
	if len(content) > MaxFileBytes {
		return "", fmt.Errorf("%w: content is %.2fMB, limit is 10MB", types.ErrFileTooLarge, float64(len(content))/1024/1024)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return rel, nil
}

// Delete removes a Markdown note. The main memory file cannot be deleted.
func (s *Store) Delete(path string) (string, error) {
	rel, abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if protectedNames[filepath.Base(rel)] {
		return "", fmt.Errorf("%w: %s", types.ErrProtectedPath, rel)
	}
	if !strings.HasSuffix(rel, ".md") {
		return "", fmt.Errorf("%w: only .md files can be deleted", types.ErrInvalidPath)
	}

	info, err := os.Lstat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", types.ErrNotFound, rel)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", types.ErrInvalidPath, rel)
	}
	if err := os.Remove(abs); err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", rel, err)
	}
	return rel, nil
}

// resolve maps a workspace-relative path to its cleaned relative form and
// absolute location. Paths that leave the root, directly or through a
// symlinked ancestor, are rejected.
func (s *Store) resolve(path string) (string, string, error) {
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("%w: path is required", types.ErrInvalidPath)
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", "", fmt.Errorf("%w: %s must be relative to the workspace", types.ErrInvalidPath, path)
	}

	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s is outside the workspace", types.ErrInvalidPath, path)
	}
	abs := filepath.Join(s.root, cleaned)

	// Resolve the deepest existing ancestor so symlinks cannot escape
	existing := abs
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	if real, err := filepath.EvalSymlinks(existing); err == nil && !within(s.root, real) {
		return "", "", fmt.Errorf("%w: %s is outside the workspace", types.ErrInvalidPath, path)
	}

	return filepath.ToSlash(cleaned), abs, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
