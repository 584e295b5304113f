// Package embedder generates vector embeddings for note chunks.
//
// The index core depends only on the single-method Embedder capability.
// Concrete backends implement Provider, and the engines receive a Choice,
// which is either Disabled or a configured Provider:
//
//	choice, err := embedder.NewChoice(embedder.Config{
//	    Provider:     "openai",
//	    OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
//	}, store, logger)
//
//	switch choice.Kind() {
//	case embedder.KindDisabled:
//	    // lexical search only
//	case embedder.KindProvider:
//	    vectors, err := choice.Embed(ctx, texts)
//	}
//
// # Providers
//
// OpenAI (openai-go SDK, any compatible endpoint via BaseURL):
//   - Dimensions: 1536 by default, or the configured size
//
// Jina AI (HTTP, exponential backoff on transient failures):
//   - Dimensions: 1024
//
// Local (offline feature hashing over word tokens):
//   - Dimensions: 384 by default
//   - Texts sharing vocabulary have positive cosine similarity
//
// Inputs larger than MaxBatchSize are split into several API calls; callers
// always make one Embed call per batch.
//
// # Caching
//
// Cached keys vectors by (provider, model, provider key, text fingerprint).
// Lookups go to the in-process LRU first, then to the persistent Store.
// Unreadable or mis-sized entries count as misses.
package embedder
