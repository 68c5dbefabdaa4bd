package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/repoindex/pkg/types"
)

const metaDimensionKey = "embedding_dimension"

// SQLiteStorage implements Store on a single SQLite file
type SQLiteStorage struct {
	db        *sql.DB
	logger    *zap.Logger
	batchSize int

	mu        sync.RWMutex
	dimension int
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens dbPath, applies migrations and loads the recorded
// vector width if the chunk table already exists.
func NewSQLiteStorage(ctx context.Context, dbPath string, insertBatchSize int, logger *zap.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{
		db:        db,
		logger:    logger.With(zap.String("store", "sqlite"), zap.String("build", BuildMode)),
		batchSize: pageSize(insertBatchSize, sqliteMaxParams),
	}

	dim, err := s.storedDimension(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.dimension = dim
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Dimension returns the schema width, or 0 before EnsureSchema
func (s *SQLiteStorage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStorage) storedDimension(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", metaDimensionKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stored dimension: %w", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored dimension %q: %w", value, err)
	}
	return dim, nil
}

// EnsureSchema creates the chunk table with a width-checked embedding column
func (s *SQLiteStorage) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 {
		if s.dimension != dimension {
			return fmt.Errorf("%w: table has %d, requested %d", ErrDimensionMismatch, s.dimension, dimension)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_sha256 TEXT NOT NULL,
    embedding BLOB NOT NULL CHECK (length(embedding) = %[2]d),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (project_id, path, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_project ON %[1]s(project_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_project_path ON %[1]s(project_id, path);
`, ChunksTable, 4*dimension)

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create chunk table: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO store_meta (key, value) VALUES (?, ?)",
		metaDimensionKey, strconv.Itoa(dimension)); err != nil {
		return fmt.Errorf("failed to record dimension: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.dimension = dimension
	if !VectorExtensionAvailable {
		s.logger.Info("sqlite-vec not compiled in, using exact scan for search", zap.Int("dimension", dimension))
	}
	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *sqliteTx) DeleteAll(ctx context.Context, projectID int64) (int64, error) {
	return t.storage.deleteAllWithQuerier(ctx, t.tx, projectID)
}

func (t *sqliteTx) BulkInsert(ctx context.Context, projectID int64, rows []ChunkRow) error {
	return t.storage.bulkInsertWithQuerier(ctx, t.tx, projectID, rows)
}

func (t *sqliteTx) SaveAnalysis(ctx context.Context, projectID int64, analysis *types.RepositoryAnalysis) error {
	return t.storage.saveAnalysisWithQuerier(ctx, t.tx, projectID, analysis)
}

// DeleteAll removes every chunk of a project
func (s *SQLiteStorage) DeleteAll(ctx context.Context, projectID int64) (int64, error) {
	return s.deleteAllWithQuerier(ctx, s.db, projectID)
}

// BulkInsert writes rows inside a transaction of its own
func (s *SQLiteStorage) BulkInsert(ctx context.Context, projectID int64, rows []ChunkRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.bulkInsertWithQuerier(ctx, tx, projectID, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deleteAllWithQuerier(ctx context.Context, q querier, projectID int64) (int64, error) {
	if s.Dimension() == 0 {
		return 0, nil
	}
	result, err := q.ExecContext(ctx, "DELETE FROM "+ChunksTable+" WHERE project_id = ?", projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStorage) bulkInsertWithQuerier(ctx context.Context, q querier, projectID int64, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	dim := s.Dimension()
	if dim == 0 {
		return fmt.Errorf("%w: schema not initialised", ErrDimensionMismatch)
	}
	if err := validateRows(rows, dim); err != nil {
		return err
	}

	for _, page := range pages(len(rows), s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := rows[page[0]:page[1]]
		args := make([]interface{}, 0, len(batch)*chunkColumnsPerRow)
		for _, r := range batch {
			args = append(args,
				projectID, r.Path, r.ChunkIndex, r.StartLine, r.EndLine,
				r.Content, r.ContentSHA256, serializeVector(r.Embedding))
		}
		if _, err := q.ExecContext(ctx, buildMultiRowChunkInsert(len(batch), questionMark), args...); err != nil {
			return fmt.Errorf("failed to insert chunks %d-%d: %w", page[0], page[1], err)
		}
	}
	return nil
}

func (s *SQLiteStorage) saveAnalysisWithQuerier(ctx context.Context, q querier, projectID int64, analysis *types.RepositoryAnalysis) error {
	if analysis == nil {
		return nil
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO repository_analyses (project_id, analysis, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_id) DO UPDATE SET analysis = excluded.analysis, updated_at = excluded.updated_at
	`, projectID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// LoadAnalysis returns the stored analysis of a project
func (s *SQLiteStorage) LoadAnalysis(ctx context.Context, projectID int64) (*types.RepositoryAnalysis, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT analysis FROM repository_analyses WHERE project_id = ?", projectID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	var analysis types.RepositoryAnalysis
	if err := json.Unmarshal([]byte(data), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}

// Stats counts the chunks and distinct files of a project
func (s *SQLiteStorage) Stats(ctx context.Context, projectID int64) (*Stats, error) {
	stats := &Stats{ProjectID: projectID, Dimension: s.Dimension()}
	if stats.Dimension == 0 {
		return stats, nil
	}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT path) FROM "+ChunksTable+" WHERE project_id = ?",
		projectID).Scan(&stats.Chunks, &stats.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, nil
}

// RecordRun upserts an index run row
func (s *SQLiteStorage) RecordRun(ctx context.Context, run *Run) error {
	var finished sql.NullInt64
	if !run.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_runs (id, project_id, status, model, dimension, files_indexed, chunks_written, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			model = excluded.model,
			dimension = excluded.dimension,
			files_indexed = excluded.files_indexed,
			chunks_written = excluded.chunks_written,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, run.ID, run.ProjectID, run.Status, run.Model, run.Dimension,
		run.FilesIndexed, run.ChunksWritten, run.Error, run.StartedAt.UnixMilli(), finished)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run of a project
func (s *SQLiteStorage) LastRun(ctx context.Context, projectID int64) (*Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, model, dimension, files_indexed, chunks_written, error, started_at, finished_at
		FROM index_runs
		WHERE project_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`, projectID).Scan(&run.ID, &run.ProjectID, &run.Status, &run.Model, &run.Dimension,
		&run.FilesIndexed, &run.ChunksWritten, &run.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return &run, nil
}
