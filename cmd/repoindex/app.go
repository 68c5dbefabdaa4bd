package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/analyzer"
	"github.com/dshills/repoindex/internal/chunker"
	"github.com/dshills/repoindex/internal/config"
	"github.com/dshills/repoindex/internal/embedder"
	"github.com/dshills/repoindex/internal/indexer"
	"github.com/dshills/repoindex/internal/logging"
	"github.com/dshills/repoindex/internal/progress"
	"github.com/dshills/repoindex/internal/scanner"
	"github.com/dshills/repoindex/internal/searcher"
	"github.com/dshills/repoindex/internal/storage"
)

// app holds the wired engine shared by every subcommand
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Store
	embedder *embedder.Client
	scanner  *scanner.Scanner
	analyzer *analyzer.Analyzer
	cache    *analyzer.Cache
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	locks    *indexer.Locks
	closers  []func() error
}

// newApp loads configuration and wires storage, embedding and the pipeline
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, locks: indexer.NewLocks()}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	store, err := storage.Open(ctx, cfg.Storage, a.logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	emb, err := embedder.New(cfg.Embedding, a.logger)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	a.embedder = emb
	a.closers = append(a.closers, emb.Close)

	ch, err := chunker.New(chunker.Config{
		TargetSize: cfg.Chunking.TargetSize,
		Overlap:    cfg.Chunking.Overlap,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}

	a.scanner = scanner.New(scanner.Config{
		SkipDirs:        cfg.Scanner.SkipDirs,
		SkipExtensions:  cfg.Scanner.SkipExtensions,
		AllowExtensions: cfg.Scanner.AllowExtensions,
		MaxFileSize:     cfg.Scanner.MaxFileSize,
	})
	a.analyzer = analyzer.New(analyzer.Options{
		SampleFiles: cfg.Indexer.SampleFiles,
		SkipDir:     a.scanner.SkipDir,
	}, a.logger)

	a.cache, err = analyzer.NewCache(cfg.Indexer.CacheEntries)
	if err != nil {
		return fmt.Errorf("create analysis cache: %w", err)
	}
	a.closers = append(a.closers, func() error { a.cache.Close(); return nil })

	sinks := progress.Multi{progress.NewLogSink(a.logger)}
	if cfg.Progress.NATSURL != "" {
		ns, err := progress.ConnectNATS(cfg.Progress.NATSURL, cfg.Progress.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("connect progress sink: %w", err)
		}
		sinks = append(sinks, ns)
		a.closers = append(a.closers, ns.Close)
	}

	a.indexer, err = indexer.New(indexer.Components{
		Scanner:  a.scanner,
		Analyzer: a.analyzer,
		Chunker:  ch,
		Embedder: emb,
		Store:    store,
	}, indexer.Config{
		Workers:     cfg.Indexer.Workers,
		Sink:        sinks,
		Cache:       a.cache,
		EmbedderFor: a.embedderFor,
	}, a.logger)
	if err != nil {
		return err
	}
	a.searcher = searcher.New(store, emb, a.logger)
	return nil
}

// embedderFor builds a client for a per-request model override. The
// configured dimension belongs to the default model, so it is dropped.
func (a *app) embedderFor(model string) (embedder.Embedder, error) {
	cfg := a.cfg.Embedding
	cfg.Model = model
	cfg.Dimension = 0
	emb, err := embedder.New(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// serveMetrics exposes /metrics until ctx is done. A blank address disables it.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics endpoint listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
