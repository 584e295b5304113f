package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// SourceRule tags the documents matching its patterns with a source.
// Patterns are doublestar globs relative to the workspace root.
type SourceRule struct {
	Source   types.Source
	Patterns []string
}

// DefaultSourceRules indexes the memory notes of a workspace
func DefaultSourceRules() []SourceRule {
	return []SourceRule{{
		Source:   types.SourceMemory,
		Patterns: []string{"MEMORY.md", "memory.md", "memory/**/*.md"},
	}}
}

// DiscoveredFile is a document found on disk
type DiscoveredFile struct {
	Path    string // Relative to the root, forward slashes
	AbsPath string
	Source  types.Source
}

// Matcher decides which workspace paths are documents
type Matcher struct {
	root  string
	rules []SourceRule
}

// NewMatcher validates rules and resolves the workspace root
func NewMatcher(root string, rules []SourceRule) (*Matcher, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: workspace root is required", types.ErrInvalidConfig)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: workspace root: %v", types.ErrInvalidConfig, err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	if len(rules) == 0 {
		rules = DefaultSourceRules()
	}
	for _, rule := range rules {
		if rule.Source == "" {
			return nil, fmt.Errorf("%w: source rule without a source", types.ErrInvalidConfig)
		}
		for _, pattern := range rule.Patterns {
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("%w: invalid glob pattern: %s", types.ErrInvalidConfig, pattern)
			}
		}
	}

	return &Matcher{root: absRoot, rules: rules}, nil
}

// Root returns the resolved absolute workspace root
func (m *Matcher) Root() string {
	return m.root
}

// Match returns the source of a root-relative path, if it is a document
func (m *Matcher) Match(relPath string) (types.Source, bool) {
	relPath = filepath.ToSlash(relPath)
	for _, rule := range m.rules {
		for _, pattern := range rule.Patterns {
			if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
				return rule.Source, true
			}
		}
	}
	return "", false
}

// MatchAbs is Match for an absolute path; paths outside the root never match
func (m *Matcher) MatchAbs(absPath string) (types.Source, bool) {
	rel, ok := m.relative(absPath)
	if !ok {
		return "", false
	}
	return m.Match(rel)
}

func (m *Matcher) relative(absPath string) (string, bool) {
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Discover walks the root and returns every document, sorted by path.
// Symlinked files are resolved; a target outside the root is ignored and
// a target reachable by several paths is reported once.
//
// unresolved lists the root-relative files and directories that could not
// be read for a reason other than being gone. Documents at or below them
// may still exist.
func (m *Matcher) Discover(ctx context.Context) (files []DiscoveredFile, unresolved []string, err error) {
	seen := make(map[string]bool)

	err = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == m.root {
				return err
			}
			if rel, ok := m.relative(path); ok && !errors.Is(err, fs.ErrNotExist) {
				unresolved = append(unresolved, rel)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != m.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, ok := m.relative(path)
		if !ok {
			return nil
		}
		source, ok := m.Match(rel)
		if !ok {
			return nil
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				unresolved = append(unresolved, rel)
			}
			return nil
		}
		if _, inside := m.relative(real); !inside {
			return nil
		}
		info, err := os.Stat(real)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				unresolved = append(unresolved, rel)
			}
			return nil
		}
		if !info.Mode().IsRegular() || seen[real] {
			return nil
		}
		seen[real] = true

		files = append(files, DiscoveredFile{Path: rel, AbsPath: real, Source: source})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover documents: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, unresolved, nil
}

// covered reports whether path is one of prefixes or lies below one
func covered(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
