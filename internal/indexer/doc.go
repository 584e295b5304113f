// Package indexer keeps a workspace's note index in step with its files.
//
// A SyncEngine owns one workspace. Any change notification calls MarkDirty;
// Sync then runs a pass only when the engine is dirty or the call is forced,
// and returns OutcomeBusy without waiting when a pass is already running.
//
// # Sync Pass
//
//  1. Discover documents with the Matcher (doublestar patterns per source)
//  2. Skip documents whose SHA-256 fingerprint matches the stored one
//  3. Chunk changed documents and embed all of a document's chunks in one call
//  4. Replace the document's chunks in one store transaction
//  5. Remove documents that are no longer discovered
//
// Documents are processed by a bounded errgroup. A failed embedding request
// stores zero vectors for that document only; the text stays searchable
// lexically and sibling documents are unaffected.
//
// # Usage
//
//	engine, err := indexer.New(store, choice, indexer.Config{
//	    Root:           "/path/to/workspace",
//	    WorkspaceID:    ws.ID,
//	    TokensPerChunk: 400,
//	    OverlapTokens:  80,
//	}, logger, bleveIndex)
//	if err != nil {
//	    return err
//	}
//
//	stats, err := engine.Sync(ctx, indexer.SyncOptions{})
//	fmt.Printf("Indexed %d, skipped %d, removed %d\n",
//	    stats.DocumentsIndexed, stats.DocumentsSkipped, stats.DocumentsRemoved)
//
// Running Sync twice with no change in between performs no writes.
package indexer
