// Package fulltext provides an in-memory Bleve index over note chunks.
//
// The index is an alternative lexical engine to the SQLite FTS5 table. The
// sync engine keeps it current through ReplaceChunks and DeletePath after
// each committed document, and the query engine reads it through
// SearchLexical. Bleve scores are mapped onto the same rank scale as FTS5,
// so the score normalizer treats both engines alike.
package fulltext
