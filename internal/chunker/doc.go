// Package chunker divides note text into line-aligned, overlapping chunks for
// embedding and search.
//
// # Basic Usage
//
//	c := chunker.New(400, 80)
//	chunks := c.ChunkDocument("memory/projects.md", types.SourceMemory, text)
//
//	for _, chunk := range chunks {
//	    fmt.Printf("%s (%d chars)\n", chunk.ID, len(chunk.Text))
//	}
//
// # Budgets
//
// Token budgets are converted to character budgets with a fixed 4 characters
// per token estimate: maxChars = max(32, tokens*4), overlapChars = max(0, overlap*4).
// This is an approximation, not a tokenizer.
//
// # Algorithm
//
// Lines longer than maxChars are cut into maxChars-wide segments that keep the
// original line number. Segments accumulate into a buffer; when the next
// segment would push the buffer past maxChars, the buffer is emitted as a chunk
// and its trailing segments, up to at least overlapChars, seed the next one.
// Each segment counts its joining newline toward the budget.
//
// With zero overlap the chunk spans cover every input line exactly once, in
// order. Chunking is pure: the same input always yields identical chunks and
// fingerprints.
package chunker
