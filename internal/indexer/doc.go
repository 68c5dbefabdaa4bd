// Package indexer coordinates the end-to-end indexing pipeline for a repository.
//
// The indexer orchestrates scanning, analysis, chunking, embedding and storage,
// managing concurrency and error handling for one full reindex of a project.
//
// # Basic Usage
//
//	idx, err := indexer.New(indexer.Components{
//	    Chunker:  chunker,
//	    Embedder: embedder,
//	    Store:    store,
//	}, indexer.Config{Workers: 8, Sink: sink}, logger)
//
//	res, err := idx.IndexRepository(ctx, indexer.Request{
//	    ProjectID: 42,
//	    Root:      "/path/to/repo",
//	})
//
//	fmt.Printf("Indexed %d files into %d chunks in %v\n",
//	    res.FilesIndexed, res.ChunksWritten, res.Duration)
//
// # Indexing Pipeline
//
// Each run is a linear state machine:
//
//  1. Scan: walk the root, or resolve the supplied file list against it
//  2. Analyze: derive the RepositoryAnalysis, reusing a cached one when the
//     version token is unchanged
//  3. Chunk: read and split files on a bounded worker pool
//  4. Embed: embed every chunk, batched by the embedding client
//  5. Store: ensure the schema, then delete, insert and save the analysis in
//     one transaction
//
// Any stage failure rolls the transaction back and the previous generation
// stays queryable. Errors carry the stage: "index project 42: embed: ...".
//
// # Concurrency
//
// The pipeline does not lock. Hosts serialise runs of the same project with
// Locks:
//
//	release, ok := locks.TryAcquire(projectID)
//	if !ok {
//	    return errors.New("indexing already in progress")
//	}
//	defer release()
//
// Unreadable files are skipped with a warning. Cancellation is checked
// between files and between embedding batches.
//
// # Progress
//
// Every run has a uuid RunID carried by log fields, progress events and the
// index_runs bookkeeping row. Progress sinks can never fail a run.
package indexer
