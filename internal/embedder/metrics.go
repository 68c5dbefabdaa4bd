package embedder

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the embedding client.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	RetriesTotal  prometheus.Counter
	BatchDuration prometheus.Histogram
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// NewMetrics registers the embedder metrics once per process.
//
// Metrics:
//   - repoindex_embedder_requests_total{result} - provider requests by outcome
//   - repoindex_embedder_retries_total - retries scheduled after a failed request
//   - repoindex_embedder_batch_duration_seconds - wall time per batch, retries included
//   - repoindex_embedder_query_cache_hits_total / _misses_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "repoindex_embedder_requests_total",
					Help: "Total number of embedding provider requests",
				},
				[]string{"result"}, // "success" or "error"
			),
			RetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "repoindex_embedder_retries_total",
				Help: "Total number of retried embedding requests",
			}),
			BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "repoindex_embedder_batch_duration_seconds",
				Help:    "Duration of one embedding batch including retries",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			}),
			CacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "repoindex_embedder_query_cache_hits_total",
				Help: "Query embeddings served from cache",
			}),
			CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "repoindex_embedder_query_cache_misses_total",
				Help: "Query embeddings that required a provider call",
			}),
		}
	})
	return globalMetrics
}
