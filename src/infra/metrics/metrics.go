package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Traversals executed by the query planner, labeled by root kind and outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphorm_queries_total",
			Help: "Total number of traversal queries executed",
		},
		[]string{"kind", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphorm_query_duration_seconds",
			Help:    "Duration of traversal queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	// Roots dropped because the store returned them more than once.
	DuplicateRootsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphorm_duplicate_roots_total",
			Help: "Root entities removed by identity deduplication",
		},
		[]string{"kind"},
	)

	NestedWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphorm_nested_writes_total",
			Help: "Total number of nested writes, labeled by root kind and outcome",
		},
		[]string{"kind", "status"},
	)

	NestedWriteNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphorm_nested_write_nodes",
			Help:    "Nodes created per committed nested write",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphorm_cache_lookups_total",
			Help: "Query cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)

// Status maps an error to the status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
