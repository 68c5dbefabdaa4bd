package indexer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for index runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	ChunksWritten prometheus.Counter
	RunDuration   prometheus.Histogram
}

// NewMetrics registers the indexer metrics once per process.
//
// Metrics:
//   - repoindex_indexer_runs_total{result} - completed and failed runs
//   - repoindex_indexer_chunks_written_total - chunks committed across runs
//   - repoindex_indexer_run_duration_seconds - wall time of IndexRepository
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "repoindex_indexer_runs_total",
					Help: "Total number of index runs",
				},
				[]string{"result"}, // "completed" or "failed"
			),
			ChunksWritten: promauto.NewCounter(prometheus.CounterOpts{
				Name: "repoindex_indexer_chunks_written_total",
				Help: "Total number of chunks committed to the vector store",
			}),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "repoindex_indexer_run_duration_seconds",
				Help:    "Duration of a full index run",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			}),
		}
	})
	return globalMetrics
}
