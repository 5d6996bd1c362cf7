// Package metrics defines the Prometheus collectors recorded by the index
// writer, search executor, and distribution layer, and exposes an HTTP
// handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIndexedTotal    prometheus.Counter
	DocsDeletedTotal    prometheus.Counter
	SegmentFlushesTotal prometheus.Counter
	SegmentMergesTotal  prometheus.Counter
	CommitsTotal        prometheus.Counter
	ActiveSegments      prometheus.Gauge
	IndexDocCount       prometheus.Gauge
	SearchLatency       *prometheus.HistogramVec
	SearchHitsCount     prometheus.Histogram
	FacetLatency        *prometheus.HistogramVec
	FilterCacheHits     prometheus.Counter
	FilterCacheMisses   prometheus.Counter
	ShardErrorsTotal    *prometheus.CounterVec
	registry            *prometheus.Registry
}

// New creates and registers all engine metrics on a private registry, so
// multiple engines in one process do not collide.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_docs_indexed_total",
			Help: "Total number of documents added to the index buffer.",
		}),
		DocsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_docs_deleted_total",
			Help: "Total number of documents tombstoned by delete operations.",
		}),
		SegmentFlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_segment_flushes_total",
			Help: "Total number of buffer flushes producing a new segment.",
		}),
		SegmentMergesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_segment_merges_total",
			Help: "Total number of segment merge operations.",
		}),
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_commits_total",
			Help: "Total number of published generations.",
		}),
		ActiveSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_active_segments",
			Help: "Number of segments in the current generation.",
		}),
		IndexDocCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_live_docs",
			Help: "Number of live documents in the current generation.",
		}),
		SearchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_latency_seconds",
			Help:    "Search execution latency in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		SearchHitsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_hits_count",
			Help:    "Number of hits collected per search.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
		}),
		FacetLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "facet_latency_seconds",
			Help:    "Facet computation latency in seconds by strategy.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"strategy"}),
		FilterCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "searcher_filter_cache_hits_total",
			Help: "Total filter bitmap cache hits.",
		}),
		FilterCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "searcher_filter_cache_misses_total",
			Help: "Total filter bitmap cache misses.",
		}),
		ShardErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distrib_shard_errors_total",
			Help: "Total per-shard failures during distributed fan-out.",
		}, []string{"shard"}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.DocsIndexedTotal, m.DocsDeletedTotal,
		m.SegmentFlushesTotal, m.SegmentMergesTotal, m.CommitsTotal,
		m.ActiveSegments, m.IndexDocCount,
		m.SearchLatency, m.SearchHitsCount, m.FacetLatency,
		m.FilterCacheHits, m.FilterCacheMisses, m.ShardErrorsTotal,
	)
	return m
}

// Handler returns the scrape handler for this engine's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
