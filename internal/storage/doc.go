// Package storage persists embedded code chunks and repository analyses and
// answers nearest-neighbour queries over them.
//
// Two backends implement Store:
//   - SQLiteStorage: a single file, vectors stored as little-endian float32
//     blobs with a CHECK constraint on their byte length
//   - PostgresStorage: pgvector vector(N) columns behind a pgx pool
//
// # Schema
//
// Tables:
//   - project_code_chunks: one row per chunk, unique on
//     (project_id, path, chunk_index), created by EnsureSchema once the
//     embedding width is known
//   - repository_analyses: latest analysis per project, JSON encoded
//   - index_runs: bookkeeping for every IndexRepository call
//
// Static tables are migrated on open (semver migrations on SQLite, goose on
// PostgreSQL). The chunk table width is fixed at creation; asking for another
// width returns ErrDimensionMismatch.
//
// # Replacing a Project
//
// A reindex replaces every row of a project in one transaction:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback(ctx) }()
//
//	if _, err := tx.DeleteAll(ctx, projectID); err != nil {
//	    return err
//	}
//	if err := tx.BulkInsert(ctx, projectID, rows); err != nil {
//	    return err
//	}
//	if err := tx.SaveAnalysis(ctx, projectID, analysis); err != nil {
//	    return err
//	}
//	return tx.Commit(ctx)
//
// Readers keep seeing the previous generation until Commit.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 with the sqlite-vec extension
//
//   - vec_distance_l2 ranks rows inside SQLite
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite
//
//   - Exact L2 distances computed in Go
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
