// Package embedder turns text into fixed-dimension vectors through an external
// embedding provider.
//
// The Client wraps a Provider with batching, bounded parallelism, rate
// limiting, and retry with exponential backoff plus jitter.
//
// # Basic Usage
//
//	client, err := embedder.New(cfg.Embedding, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	vectors, err := client.Embed(ctx, texts)
//	// len(vectors) == len(texts); vectors[i] belongs to texts[i]
//
// # Batching and Ordering
//
// Input is grouped into batches of BatchSize texts. Up to Parallelism batches
// are in flight at once. Providers label every vector with its position in the
// request, and the Client places results by that label, so the output order
// always matches the input order even when a provider answers out of order.
//
// # Retries
//
// A failed batch is retried up to MaxRetries times. Throttling (HTTP 429),
// server errors (5xx) and transport failures are retryable; other 4xx
// responses fail immediately. When a batch exhausts its retries the whole Embed
// call fails with ErrProviderFailed. No partial result is returned.
//
// # Dimension
//
// Dimension resolves, in order: an explicit configured dimension (the
// VECTOR_EMBEDDING_DIM variable feeds this), the static table of known models,
// and finally a single probe embedding of "dimension probe". The value is
// memoized for the lifetime of the Client.
//
// # Providers
//
//   - openai: any OpenAI-compatible /v1/embeddings endpoint (OpenAI, Jina,
//     local inference servers)
//   - local: deterministic hash-based vectors for offline use and tests
package embedder
