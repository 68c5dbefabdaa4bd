package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/repoindex/internal/analyzer"
	"github.com/dshills/repoindex/internal/embedder"
	"github.com/dshills/repoindex/internal/progress"
	"github.com/dshills/repoindex/internal/scanner"
	"github.com/dshills/repoindex/internal/storage"
	"github.com/dshills/repoindex/pkg/types"
)

var (
	// ErrInvalidRequest is returned for a missing project id or an unusable root
	ErrInvalidRequest = errors.New("invalid index request")

	// ErrModelUnavailable is returned when a request names a model the indexer cannot build
	ErrModelUnavailable = errors.New("embedding model unavailable")
)

// Pipeline stage names, used in errors and progress events
const (
	StageScan    = "scan"
	StageAnalyze = "analyze"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// embedWindow is the number of chunks handed to the embedder per call; each
// call covers whole files so per-file embed progress can be reported.
const embedWindow = 512

// Splitter turns file content into chunks
type Splitter interface {
	Split(ctx context.Context, path, content string) ([]types.ChunkSpan, error)
}

// EmbedderFactory builds an embedder for a model other than the default one
type EmbedderFactory func(model string) (embedder.Embedder, error)

// Components are the collaborators of an Indexer. Chunker, Embedder and
// Store are required; Scanner and Analyzer default when nil.
type Components struct {
	Scanner  *scanner.Scanner
	Analyzer *analyzer.Analyzer
	Chunker  Splitter
	Embedder embedder.Embedder
	Store    storage.Store
}

// Config contains configuration for the indexer
type Config struct {
	Workers     int             // Concurrent chunking workers (default: runtime.NumCPU())
	Sink        progress.Sink   // Receives every run's events; nil = progress.Nop
	Cache       *analyzer.Cache // Optional analysis cache
	EmbedderFor EmbedderFactory // Optional, serves Request.Model overrides
}

// Request describes one full reindex of a project
type Request struct {
	ProjectID int64
	Root      string
	Files     []string      // nil = scan Root; otherwise paths relative to Root
	Model     string        // empty = the default embedder's model
	Sink      progress.Sink // Optional per-run sink, in addition to Config.Sink
}

// Result summarises a completed run
type Result struct {
	RunID              string
	FilesIndexed       int
	ChunksWritten      int
	EmbeddingDimension int
	EmbeddingModel     string
	Deleted            int64 // rows of the previous generation
	Analysis           *types.RepositoryAnalysis
	Duration           time.Duration
}

// Indexer coordinates the indexing pipeline: scan -> analyze -> chunk -> embed -> store
type Indexer struct {
	scanner     *scanner.Scanner
	analyzer    *analyzer.Analyzer
	chunker     Splitter
	embedder    embedder.Embedder
	store       storage.Store
	cache       *analyzer.Cache
	embedderFor EmbedderFactory
	sink        progress.Sink
	workers     int
	logger      *zap.Logger
	metrics     *Metrics
}

// New creates a new Indexer instance
func New(c Components, cfg Config, logger *zap.Logger) (*Indexer, error) {
	if c.Chunker == nil || c.Embedder == nil || c.Store == nil {
		return nil, errors.New("indexer requires a chunker, an embedder and a store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Scanner == nil {
		c.Scanner = scanner.New(scanner.DefaultConfig())
	}
	if c.Analyzer == nil {
		c.Analyzer = analyzer.New(analyzer.Options{SkipDir: c.Scanner.SkipDir}, logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Sink == nil {
		cfg.Sink = progress.Nop{}
	}
	return &Indexer{
		scanner:     c.Scanner,
		analyzer:    c.Analyzer,
		chunker:     c.Chunker,
		embedder:    c.Embedder,
		store:       c.Store,
		cache:       cfg.Cache,
		embedderFor: cfg.EmbedderFor,
		sink:        cfg.Sink,
		workers:     cfg.Workers,
		logger:      logger,
		metrics:     NewMetrics(),
	}, nil
}

// IndexRepository replaces the stored generation of req.ProjectID with a
// fresh one. Either every chunk and the analysis commit together or nothing
// changes.
func (idx *Indexer) IndexRepository(ctx context.Context, req Request) (*Result, error) {
	if err := idx.validate(req); err != nil {
		return nil, err
	}

	started := time.Now()
	runID := uuid.NewString()
	logger := idx.logger.With(zap.Int64("project_id", req.ProjectID), zap.String("run_id", runID))

	sink := idx.sink
	if req.Sink != nil {
		sink = progress.Multi{idx.sink, req.Sink}
	}
	rep := progress.NewReporter(sink, runID, req.ProjectID, logger)

	emb, release, err := idx.embedderForModel(req.Model)
	if err != nil {
		err = fmt.Errorf("index project %d: %w", req.ProjectID, err)
		rep.Error(ctx, err.Error())
		idx.metrics.RunsTotal.WithLabelValues(storage.RunFailed).Inc()
		return nil, err
	}
	defer release()

	run := &storage.Run{
		ID:        runID,
		ProjectID: req.ProjectID,
		Status:    storage.RunRunning,
		Model:     emb.Model(),
		StartedAt: started.UTC(),
	}
	idx.recordRun(ctx, run, logger)
	logger.Info("index run started", zap.String("root", req.Root), zap.String("model", emb.Model()))

	res := &Result{RunID: runID, EmbeddingModel: emb.Model()}
	err = idx.execute(ctx, req, emb, rep, logger, res)
	res.Duration = time.Since(started)

	run.FinishedAt = time.Now().UTC()
	run.Dimension = res.EmbeddingDimension
	run.FilesIndexed = res.FilesIndexed
	run.ChunksWritten = res.ChunksWritten
	idx.metrics.RunDuration.Observe(res.Duration.Seconds())

	if err != nil {
		run.Status = storage.RunFailed
		run.Error = err.Error()
		idx.recordRun(ctx, run, logger)
		idx.metrics.RunsTotal.WithLabelValues(storage.RunFailed).Inc()
		logger.Error("index run failed", zap.Duration("duration", res.Duration), zap.Error(err))
		rep.Error(ctx, err.Error())
		return nil, err
	}

	run.Status = storage.RunCompleted
	idx.recordRun(ctx, run, logger)
	idx.metrics.RunsTotal.WithLabelValues(storage.RunCompleted).Inc()
	idx.metrics.ChunksWritten.Add(float64(res.ChunksWritten))
	logger.Info("index run completed",
		zap.Int("files", res.FilesIndexed),
		zap.Int("chunks", res.ChunksWritten),
		zap.Int64("deleted", res.Deleted),
		zap.Int("dimension", res.EmbeddingDimension),
		zap.Duration("duration", res.Duration),
	)
	rep.Complete(ctx, fmt.Sprintf("indexed %d files into %d chunks", res.FilesIndexed, res.ChunksWritten))
	return res, nil
}

func (idx *Indexer) validate(req Request) error {
	if req.ProjectID <= 0 {
		return fmt.Errorf("%w: project id must be positive", ErrInvalidRequest)
	}
	if req.Root == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidRequest)
	}
	info, err := os.Stat(req.Root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRequest, req.Root)
	}
	return nil
}

// embedderForModel returns the embedder serving model and a release func
func (idx *Indexer) embedderForModel(model string) (embedder.Embedder, func(), error) {
	if model == "" || model == idx.embedder.Model() {
		return idx.embedder, func() {}, nil
	}
	if idx.embedderFor == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrModelUnavailable, model)
	}
	emb, err := idx.embedderFor(model)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, model, err)
	}
	return emb, func() { _ = emb.Close() }, nil
}

// execute runs the pipeline stages, filling res as they complete
func (idx *Indexer) execute(ctx context.Context, req Request, emb embedder.Embedder,
	rep *progress.Reporter, logger *zap.Logger, res *Result) error {

	fail := func(stage string, err error) error {
		return fmt.Errorf("index project %d: %s: %w", req.ProjectID, stage, err)
	}

	rep.StartStage(ctx, StageScan, "discovering files")
	files, err := idx.discoverFiles(ctx, req, rep, logger)
	if err != nil {
		return fail(StageScan, err)
	}
	rep.Milestone(ctx, fmt.Sprintf("%d files to index", len(files)))

	rep.StartStage(ctx, StageAnalyze, "analyzing repository")
	analysis := idx.analyze(ctx, req, files, rep)
	if err := ctx.Err(); err != nil {
		return fail(StageAnalyze, err)
	}
	res.Analysis = &analysis

	rep.StartStage(ctx, StageChunk, "chunking files")
	chunked, filesIndexed, err := idx.chunkFiles(ctx, files, rep, logger)
	if err != nil {
		return fail(StageChunk, err)
	}
	res.FilesIndexed = filesIndexed

	rows := make([]storage.ChunkRow, 0, len(chunked))
	for _, fc := range chunked {
		for _, span := range fc.spans {
			rows = append(rows, storage.ChunkRow{
				Path:          fc.path,
				ChunkIndex:    span.Index,
				StartLine:     span.StartLine,
				EndLine:       span.EndLine,
				Content:       span.Content,
				ContentSHA256: span.Hash,
			})
		}
	}
	rep.Milestone(ctx, fmt.Sprintf("%d chunks from %d files", len(rows), filesIndexed))

	rep.StartStage(ctx, StageEmbed, "embedding chunks")
	dim, err := emb.Dimension(ctx)
	if err != nil {
		return fail(StageEmbed, err)
	}
	res.EmbeddingDimension = dim
	if err := idx.embedRows(ctx, emb, chunked, rows, rep); err != nil {
		return fail(StageEmbed, err)
	}

	rep.StartStage(ctx, StageStore, "writing generation")
	deleted, err := idx.replace(ctx, req.ProjectID, dim, rows, &analysis, logger)
	if err != nil {
		return fail(StageStore, err)
	}
	res.Deleted = deleted
	res.ChunksWritten = len(rows)
	return nil
}

// discoverFiles scans the root or resolves the supplied file list
func (idx *Indexer) discoverFiles(ctx context.Context, req Request, rep *progress.Reporter,
	logger *zap.Logger) ([]types.FileRecord, error) {

	var files []types.FileRecord
	if req.Files == nil {
		scanned, err := idx.scanner.Scan(ctx, req.Root)
		if err != nil {
			return nil, err
		}
		files = scanned
	} else {
		var rejected []string
		files, rejected = idx.scanner.Resolve(req.Root, req.Files)
		for _, p := range rejected {
			logger.Warn("skipping unusable file", zap.String("path", p))
			rep.Warning(ctx, fmt.Sprintf("skipped %s: missing, outside the root or not a regular file", p))
		}
	}
	for i, f := range files {
		rep.FileProgress(ctx, StageScan, f.Path, i+1)
	}
	return files, nil
}

// embedRows fills rows[i].Embedding in windows of whole files, reporting each
// file once all of its chunks have vectors. rows follow the order of chunked.
func (idx *Indexer) embedRows(ctx context.Context, emb embedder.Embedder, chunked []fileChunks,
	rows []storage.ChunkRow, rep *progress.Reporter) error {

	var (
		start, end int
		pending    []string
		done       int
	)
	flush := func() error {
		if end == start {
			return nil
		}
		texts := make([]string, 0, end-start)
		for _, r := range rows[start:end] {
			texts = append(texts, r.Content)
		}
		vectors, err := emb.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
		}
		for i, v := range vectors {
			rows[start+i].Embedding = v
		}
		for _, path := range pending {
			done++
			rep.FileProgress(ctx, StageEmbed, path, done)
		}
		start, pending = end, pending[:0]
		return nil
	}

	for _, fc := range chunked {
		if len(fc.spans) == 0 {
			continue
		}
		end += len(fc.spans)
		pending = append(pending, fc.path)
		if end-start >= embedWindow {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// analyze consults the cache before running the analyzer
func (idx *Indexer) analyze(ctx context.Context, req Request, files []types.FileRecord,
	rep *progress.Reporter) types.RepositoryAnalysis {

	var token string
	if idx.cache != nil {
		token = idx.analyzer.VersionToken(ctx, req.Root, files)
		if cached, ok := idx.cache.Get(req.ProjectID, token); ok {
			rep.Milestone(ctx, "analysis reused from cache")
			return cached
		}
	}
	analysis := idx.analyzer.Analyze(ctx, req.Root, files)
	if idx.cache != nil && ctx.Err() == nil {
		idx.cache.Put(req.ProjectID, token, analysis)
	}
	return analysis
}

type fileChunks struct {
	path  string
	spans []types.ChunkSpan
}

// chunkFiles reads and splits files on a bounded worker pool. Unreadable
// files are warnings; results keep file order.
func (idx *Indexer) chunkFiles(ctx context.Context, files []types.FileRecord, rep *progress.Reporter,
	logger *zap.Logger) ([]fileChunks, int, error) {

	results := make([]fileChunks, len(files))
	var indexed, done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(f.AbsPath)
			if err != nil {
				logger.Warn("failed to read file", zap.String("path", f.Path), zap.Error(err))
				rep.Warning(gctx, fmt.Sprintf("skipped %s: %v", f.Path, err))
				return nil
			}
			content := string(data)
			if strings.TrimSpace(content) == "" {
				return nil
			}
			if strings.IndexByte(content, 0) >= 0 {
				logger.Debug("skipping binary file", zap.String("path", f.Path))
				return nil
			}

			spans, err := idx.chunker.Split(gctx, f.Path, content)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Path, err)
			}
			results[i] = fileChunks{path: f.Path, spans: spans}
			indexed.Add(1)
			rep.FileProgress(gctx, StageChunk, f.Path, int(done.Add(1)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return results, int(indexed.Load()), nil
}

// replace swaps the stored generation inside one transaction
func (idx *Indexer) replace(ctx context.Context, projectID int64, dim int, rows []storage.ChunkRow,
	analysis *types.RepositoryAnalysis, logger *zap.Logger) (int64, error) {

	if err := idx.store.EnsureSchema(ctx, dim); err != nil {
		return 0, err
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("rollback failed", zap.Error(err))
		}
	}()

	deleted, err := tx.DeleteAll(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if err := tx.BulkInsert(ctx, projectID, rows); err != nil {
		return 0, err
	}
	if err := tx.SaveAnalysis(ctx, projectID, analysis); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	committed = true
	return deleted, nil
}

// recordRun persists run bookkeeping; failures only warn
func (idx *Indexer) recordRun(ctx context.Context, run *storage.Run, logger *zap.Logger) {
	if err := idx.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record index run", zap.String("status", run.Status), zap.Error(err))
	}
}
