package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql (needed by goose)
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/config"
	"github.com/dshills/repoindex/pkg/types"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresStorage implements Store on PostgreSQL with the pgvector extension
type PostgresStorage struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	batchSize int

	mu        sync.RWMutex
	dimension int
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunPostgresMigrations applies the embedded goose migrations
func RunPostgresMigrations(ctx context.Context, dsn string) error {
	goose.SetBaseFS(postgresMigrations)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// NewPostgresStorage migrates the static tables, opens a pool with the
// vector types registered and reads the existing chunk table width.
func NewPostgresStorage(ctx context.Context, cfg config.Storage, logger *zap.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := RunPostgresMigrations(ctx, cfg.PostgresDSN); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresStorage{
		pool:      pool,
		logger:    logger.With(zap.String("store", "postgres")),
		batchSize: pageSize(cfg.InsertBatchSize, postgresMaxParams),
	}
	dim, err := s.columnDimension(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.dimension = dim
	return s, nil
}

// Close closes the pool
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// Dimension returns the schema width, or 0 before EnsureSchema
func (s *PostgresStorage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// columnDimension reads the declared width of the embedding column, 0 when
// the table does not exist yet.
func (s *PostgresStorage) columnDimension(ctx context.Context) (int, error) {
	var typmod int32
	err := s.pool.QueryRow(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1)
		  AND a.attname = 'embedding'
		  AND NOT a.attisdropped
	`, ChunksTable).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read embedding column: %w", err)
	}
	return int(typmod), nil
}

// EnsureSchema creates the chunk table with a vector(N) column, its lookup
// indexes and, best effort, an HNSW index for L2 distance.
func (s *PostgresStorage) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.columnDimension(ctx)
	if err != nil {
		return err
	}
	if existing != 0 {
		if existing != dimension {
			return fmt.Errorf("%w: table has %d, requested %d", ErrDimensionMismatch, existing, dimension)
		}
		s.dimension = existing
		return nil
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id              BIGSERIAL PRIMARY KEY,
    project_id      BIGINT NOT NULL,
    path            TEXT NOT NULL,
    chunk_index     INTEGER NOT NULL,
    start_line      INTEGER NOT NULL,
    end_line        INTEGER NOT NULL,
    content         TEXT NOT NULL,
    content_sha256  TEXT NOT NULL,
    embedding       vector(%[2]d) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (project_id, path, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_project ON %[1]s (project_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_project_path ON %[1]s (project_id, path);
`, ChunksTable, dimension)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create chunk table: %w", err)
	}

	// HNSW has a width ceiling and needs a recent pgvector; exact scan still works without it
	hnsw := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding_hnsw ON %[1]s USING hnsw (embedding vector_l2_ops)", ChunksTable)
	if _, err := s.pool.Exec(ctx, hnsw); err != nil {
		s.logger.Warn("ANN index not created, falling back to exact search",
			zap.Int("dimension", dimension), zap.Error(err))
	}

	s.dimension = dimension
	return nil
}

// BeginTx starts a new transaction
func (s *PostgresStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &postgresTx{tx: tx, storage: s}, nil
}

type postgresTx struct {
	tx      pgx.Tx
	storage *PostgresStorage
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *postgresTx) DeleteAll(ctx context.Context, projectID int64) (int64, error) {
	return t.storage.deleteAllWithQuerier(ctx, t.tx, projectID)
}

func (t *postgresTx) BulkInsert(ctx context.Context, projectID int64, rows []ChunkRow) error {
	return t.storage.bulkInsertWithQuerier(ctx, t.tx, projectID, rows)
}

func (t *postgresTx) SaveAnalysis(ctx context.Context, projectID int64, analysis *types.RepositoryAnalysis) error {
	return t.storage.saveAnalysisWithQuerier(ctx, t.tx, projectID, analysis)
}

// DeleteAll removes every chunk of a project
func (s *PostgresStorage) DeleteAll(ctx context.Context, projectID int64) (int64, error) {
	return s.deleteAllWithQuerier(ctx, s.pool, projectID)
}

// BulkInsert writes rows inside a transaction of its own
func (s *PostgresStorage) BulkInsert(ctx context.Context, projectID int64, rows []ChunkRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.bulkInsertWithQuerier(ctx, tx, projectID, rows); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) deleteAllWithQuerier(ctx context.Context, q pgQuerier, projectID int64) (int64, error) {
	if s.Dimension() == 0 {
		return 0, nil
	}
	tag, err := q.Exec(ctx, "DELETE FROM "+ChunksTable+" WHERE project_id = $1", projectID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStorage) bulkInsertWithQuerier(ctx context.Context, q pgQuerier, projectID int64, rows []ChunkRow) error {
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
		batch := rows[page[0]:page[1]]
		args := make([]any, 0, len(batch)*chunkColumnsPerRow)
		for _, r := range batch {
			args = append(args,
				projectID, r.Path, r.ChunkIndex, r.StartLine, r.EndLine,
				r.Content, r.ContentSHA256, pgvector.NewVector(r.Embedding))
		}
		if _, err := q.Exec(ctx, buildMultiRowChunkInsert(len(batch), dollar), args...); err != nil {
			return fmt.Errorf("insert chunks %d-%d: %w", page[0], page[1], err)
		}
	}
	return nil
}

func (s *PostgresStorage) saveAnalysisWithQuerier(ctx context.Context, q pgQuerier, projectID int64, analysis *types.RepositoryAnalysis) error {
	if analysis == nil {
		return nil
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO repository_analyses (project_id, analysis, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (project_id) DO UPDATE SET analysis = EXCLUDED.analysis, updated_at = EXCLUDED.updated_at
	`, projectID, data)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// Search orders by the pgvector L2 operator so the HNSW index can serve it
func (s *PostgresStorage) Search(ctx context.Context, projectID int64, vector []float32, k int, pathPrefix string) ([]types.SearchHit, error) {
	dim := s.Dimension()
	if dim == 0 || k <= 0 {
		return []types.SearchHit{}, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, schema %d", ErrDimensionMismatch, len(vector), dim)
	}

	query := `
		SELECT id, path, start_line, end_line, content, embedding <-> $1 AS distance
		FROM ` + ChunksTable + `
		WHERE project_id = $2`
	args := []any{pgvector.NewVector(vector), projectID}
	if pathPrefix != "" {
		query += ` AND path LIKE $3 ESCAPE '\'`
		args = append(args, escapeLike(pathPrefix))
	}
	query += fmt.Sprintf(" ORDER BY embedding <-> $1 LIMIT $%d", len(args)+1)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	hits := make([]types.SearchHit, 0, k)
	for rows.Next() {
		var h types.SearchHit
		if err := rows.Scan(&h.ID, &h.Path, &h.StartLine, &h.EndLine, &h.Content, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// LoadAnalysis returns the stored analysis of a project
func (s *PostgresStorage) LoadAnalysis(ctx context.Context, projectID int64) (*types.RepositoryAnalysis, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT analysis FROM repository_analyses WHERE project_id = $1", projectID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	var analysis types.RepositoryAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

// Stats counts the chunks and distinct files of a project
func (s *PostgresStorage) Stats(ctx context.Context, projectID int64) (*Stats, error) {
	stats := &Stats{ProjectID: projectID, Dimension: s.Dimension()}
	if stats.Dimension == 0 {
		return stats, nil
	}
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT path) FROM "+ChunksTable+" WHERE project_id = $1",
		projectID).Scan(&stats.Chunks, &stats.Files)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	return stats, nil
}

// RecordRun upserts an index run row
func (s *PostgresStorage) RecordRun(ctx context.Context, run *Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}
	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO index_runs (id, project_id, status, model, dimension, files_indexed, chunks_written, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			model = EXCLUDED.model,
			dimension = EXCLUDED.dimension,
			files_indexed = EXCLUDED.files_indexed,
			chunks_written = EXCLUDED.chunks_written,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`, id, run.ProjectID, run.Status, run.Model, run.Dimension,
		run.FilesIndexed, run.ChunksWritten, run.Error, run.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run of a project
func (s *PostgresStorage) LastRun(ctx context.Context, projectID int64) (*Run, error) {
	var (
		run      Run
		id       uuid.UUID
		finished *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, status, model, dimension, files_indexed, chunks_written, error, started_at, finished_at
		FROM index_runs
		WHERE project_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, projectID).Scan(&id, &run.ProjectID, &run.Status, &run.Model, &run.Dimension,
		&run.FilesIndexed, &run.ChunksWritten, &run.Error, &run.StartedAt, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	run.ID = id.String()
	if finished != nil {
		run.FinishedAt = *finished
	}
	return &run, nil
}
