// Package notes reads, writes and deletes Markdown notes inside a workspace.
//
// Every path is relative to the workspace root and must stay inside it,
// including through symlinks. Notes are limited to MaxFileBytes. Writes and
// deletes accept only .md files, and the main MEMORY.md cannot be deleted.
// Callers mark the sync engine dirty after a successful write or delete.
package notes
