package types

import "errors"

// Domain errors shared across packages
var (
	// Configuration errors, raised to the immediate caller
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrIndexingDisabled = errors.New("memory indexing is disabled")

	// Note operation errors
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotFound      = errors.New("not found")
	ErrFileTooLarge  = errors.New("file too large")
	ErrProtectedPath = errors.New("path is protected")

	// Chunk validation errors
	ErrInvalidChunkID = errors.New("invalid chunk ID")
)
