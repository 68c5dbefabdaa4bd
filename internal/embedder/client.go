package embedder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options configures a Client
type Options struct {
	Model       string
	Dimension   int     // 0 = static table, then probe
	BatchSize   int     // texts per provider request
	Parallelism int     // concurrent batches
	RateLimit   float64 // requests per second, 0 = unlimited
	CacheSize   int     // query cache entries
	Retry       RetryConfig
}

// Client batches, parallelises and retries embedding requests against a
// Provider.
type Client struct {
	provider Provider
	opts     Options
	limiter  *rate.Limiter
	cache    *Cache
	logger   *zap.Logger
	metrics  *Metrics

	dimMu sync.Mutex
	dim   int
}

// NewClient wraps provider. Zero-valued options take package defaults.
func NewClient(provider Provider, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}

	limit := rate.Inf
	burst := opts.Parallelism
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		burst = max(1, int(opts.RateLimit))
	}

	return &Client{
		provider: provider,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
		cache:    NewCache(opts.CacheSize),
		logger:   logger.With(zap.String("provider", provider.Name()), zap.String("model", opts.Model)),
		metrics:  NewMetrics(),
		dim:      opts.Dimension,
	}
}

// Model returns the model id
func (c *Client) Model() string {
	return c.opts.Model
}

// Embed returns one vector per text in input order. Any batch that exhausts
// its retries fails the whole call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text at index %d", ErrEmptyText, i)
		}
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)

	for start := 0; start < len(texts); start += c.opts.BatchSize {
		if err := gctx.Err(); err != nil {
			break
		}
		end := min(start+c.opts.BatchSize, len(texts))
		batch := texts[start:end]
		offset := start
		g.Go(func() error {
			vectors, err := c.embedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch at %d: %w", offset, err)
			}
			copy(out[offset:], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.checkWidth(out); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatch runs one batch through the limiter and retry policy
func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	started := time.Now()
	defer func() {
		c.metrics.BatchDuration.Observe(time.Since(started).Seconds())
	}()

	attempt := 0
	vectors, err := retryWithBackoff(ctx, c.opts.Retry, func() ([][]float32, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		results, err := c.provider.EmbedBatch(ctx, c.opts.Model, batch)
		if err != nil {
			c.metrics.RequestsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		ordered, err := orderByIndex(results, len(batch))
		if err != nil {
			c.metrics.RequestsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		c.metrics.RequestsTotal.WithLabelValues("success").Inc()
		return ordered, nil
	}, func(err error, wait time.Duration) {
		c.metrics.RetriesTotal.Inc()
		c.logger.Warn("embedding request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("batch_size", len(batch)),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrProviderFailed, attempt, err)
	}
	return vectors, nil
}

// checkWidth verifies all vectors share one width and that it matches a
// known dimension. The first successful call fixes an unknown dimension.
func (c *Client) checkWidth(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	width := len(vectors[0])
	for i, v := range vectors {
		if len(v) != width {
			return fmt.Errorf("%w: vector %d has width %d, want %d", ErrDimensionMismatch, i, len(v), width)
		}
	}

	c.dimMu.Lock()
	defer c.dimMu.Unlock()
	if c.dim == 0 {
		c.dim = width
		return nil
	}
	if width != c.dim {
		return fmt.Errorf("%w: provider returned %d, expected %d", ErrDimensionMismatch, width, c.dim)
	}
	return nil
}

// EmbedQuery embeds a single query text, serving repeats from the cache
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	key := cacheKey(c.opts.Model, text)
	if vec, ok := c.cache.Get(key); ok {
		c.metrics.CacheHits.Inc()
		return vec, nil
	}
	c.metrics.CacheMisses.Inc()

	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vectors[0])
	return vectors[0], nil
}

// Dimension resolves the vector width: configured value, then the static
// model table, then a single probe request. The result is memoized.
func (c *Client) Dimension(ctx context.Context) (int, error) {
	c.dimMu.Lock()
	if c.dim > 0 {
		d := c.dim
		c.dimMu.Unlock()
		return d, nil
	}
	if d, ok := KnownDimension(c.opts.Model); ok {
		c.dim = d
		c.dimMu.Unlock()
		return d, nil
	}
	c.dimMu.Unlock()

	c.logger.Info("probing embedding dimension")
	vectors, err := c.Embed(ctx, []string{DimensionProbeText})
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	return len(vectors[0]), nil
}

// Close releases the provider
func (c *Client) Close() error {
	c.cache.Clear()
	return c.provider.Close()
}
