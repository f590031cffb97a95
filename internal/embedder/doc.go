// Package embedder turns text into unit-length vectors for the vector store
// and for queries.
//
// Providers:
//   - openai and jina call an OpenAI-compatible embeddings API through
//     go-openai, with retry-go backoff and optional x/time/rate pacing
//   - local is an offline hashed bag of words over identifier-aware tokens
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "jina",
//	    APIKey:    os.Getenv("JINA_API_KEY"),
//	    CacheSize: 10000,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vector, err := emb.Embed(ctx, "how does login work")
//
// Batches larger than MaxBatchSize are split into several API calls and
// returned in input order.
//
// # Caching
//
// WithCache keys vectors by provider, model and SHA-256 of the text, so a
// provider switch never serves stale vectors.
package embedder
