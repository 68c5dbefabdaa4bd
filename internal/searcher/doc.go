// Package searcher implements semantic code search over an indexed project.
//
// A search embeds the query text once (the embedding client caches query
// vectors) and asks the vector store for the k nearest chunks by L2
// distance, optionally restricted to a path prefix.
//
// # Basic Usage
//
//	s := searcher.New(store, embedder, logger)
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    ProjectID:  42,
//	    Query:      "where are retries configured",
//	    K:          5,
//	    PathPrefix: "internal/",
//	})
//
//	for _, hit := range resp.Hits {
//	    fmt.Printf("%s:%d-%d (dist %.3f)\n", hit.Path, hit.StartLine, hit.EndLine, hit.Distance)
//	}
//
// # Limits
//
// K must be in [1, 50]. Hits arrive nearest first, so the distances are
// non-decreasing. A project that was never indexed yields no hits.
//
// # Prompt Context
//
// FormatForPrompt turns hits into a bounded context string for a language
// model prompt, 12000 characters by default.
package searcher
