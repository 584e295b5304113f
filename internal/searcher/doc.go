// Package searcher provides hybrid search over an indexed workspace.
//
// A QueryEngine runs two legs in parallel and merges them:
//
//   - Lexical: the keyword engine (FTS5 or Bleve), skipped when unavailable
//   - Vector: the query is embedded and matched by cosine distance, skipped
//     when no provider is configured, the call fails, or the query vector
//     is all zeros
//
// Native signals are normalized to [0, 1] and combined with the configured
// weights (default 0.7 vector, 0.3 text). Results below the minimum score
// are dropped and the rest truncated to the requested count.
//
// If the sync engine is dirty, the search first runs a sync pass; a failed
// pass is logged and the search proceeds on the committed index.
//
// # Usage
//
//	engine, err := searcher.New(ftsEngine, vectorIndex, choice, syncEngine,
//	    searcher.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := engine.Search(ctx, searcher.Request{
//	    Query:      "what did we decide about the deploy?",
//	    MaxResults: 5,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%s:%d-%d %.3f\n", r.Path, r.StartLine, r.EndLine, r.Score)
//	}
package searcher
