package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Source tags the collection a document was discovered in
type Source string

const (
	// SourceMemory covers MEMORY.md and the memory/ directory
	SourceMemory Source = "memory"
	// SourceSessions covers archived session transcripts
	SourceSessions Source = "sessions"
)

// Document is a tracked note file, keyed by path within a workspace
type Document struct {
	Path    string // Relative to workspace root, forward slashes
	Source  Source
	Hash    string // Fingerprint of the full content
	ModTime time.Time
	Size    int64
}

// Chunk is a contiguous span of a document's lines
type Chunk struct {
	// Identification
	ID     string // path:startLine-endLine
	Path   string
	Source Source

	// Location (1-based, inclusive)
	StartLine int
	EndLine   int

	// Content
	Text string
	Hash string // Fingerprint of Text
}

// IndexedChunk is a chunk with its embedding, as written to the index engines
type IndexedChunk struct {
	Chunk
	Embedding []float32
	Model     string
	UpdatedAt time.Time
}

// ChunkID formats the stable chunk identifier "<path>:<startLine>-<endLine>"
func ChunkID(path string, startLine, endLine int) string {
	return path + ":" + strconv.Itoa(startLine) + "-" + strconv.Itoa(endLine)
}

// Fingerprint returns the hex SHA-256 digest of content
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FingerprintString is Fingerprint for string content
func FingerprintString(content string) string {
	return Fingerprint([]byte(content))
}

// Validate checks span and identity invariants
func (c *Chunk) Validate() error {
	if c.Path == "" {
		return errors.New("chunk path cannot be empty")
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	if c.ID != ChunkID(c.Path, c.StartLine, c.EndLine) {
		return ErrInvalidChunkID
	}

	return nil
}

// IsZeroVector reports whether v carries no signal (empty or all zeros)
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
