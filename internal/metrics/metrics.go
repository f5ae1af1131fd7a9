// Package metrics holds the Prometheus collectors of the library.
//
// Collectors are grouped in a Metrics value created per registry, so several
// documents can report into different registries. A Metrics created with a
// nil registerer works normally but is not exported anywhere.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors.
type Metrics struct {
	SubBlocksRead      prometheus.Counter
	SubBlocksWritten   prometheus.Counter
	BytesRead          prometheus.Counter
	BytesWritten       prometheus.Counter
	SegmentsReused     prometheus.Counter
	SegmentsRelocated  prometheus.Counter
	SegmentsTombstoned prometheus.Counter
	SubBlocksCulled    prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheMemoryBytes   prometheus.Gauge
	ComposeDuration    prometheus.Histogram
}

// New creates the collectors and registers them with reg, which may be nil.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SubBlocksRead: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_subblocks_read_total",
			Help: "Sub-blocks read from a document",
		}),
		SubBlocksWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_subblocks_written_total",
			Help: "Sub-blocks written to a document",
		}),
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_bytes_read_total",
			Help: "Bytes read from document streams",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_bytes_written_total",
			Help: "Bytes written to document streams",
		}),
		SegmentsReused: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_segments_reused_total",
			Help: "Segments overwritten in place",
		}),
		SegmentsRelocated: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_segments_relocated_total",
			Help: "Segments moved to the end of the file because they grew",
		}),
		SegmentsTombstoned: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_segments_tombstoned_total",
			Help: "Segments marked DELETED",
		}),
		SubBlocksCulled: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_subblocks_culled_total",
			Help: "Sub-blocks skipped because later sub-blocks cover them",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_cache_hits_total",
			Help: "Sub-block cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "czi_cache_misses_total",
			Help: "Sub-block cache misses",
		}),
		CacheMemoryBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "czi_cache_memory_bytes",
			Help: "Memory held by cached sub-block bitmaps",
		}),
		ComposeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "czi_compose_duration_seconds",
			Help:    "Time to compose a region of interest",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Discard returns collectors that are not registered anywhere.
func Discard() *Metrics {
	return New(nil)
}
