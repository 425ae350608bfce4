package monitor

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkloadStats counts what the store is asked to do. Every instance owns
// its registry so several stores can live in one process.
type WorkloadStats struct {
	ReadCount  uint64
	WriteCount uint64
	HitCount   uint64

	registry *prometheus.Registry

	reads    prometheus.Counter
	writes   prometheus.Counter
	hits     prometheus.Counter
	removes  prometheus.Counter
	queries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	retrains prometheus.Counter
	items    prometheus.Gauge
	buckets  prometheus.Gauge
}

func NewWorkloadStats() *WorkloadStats {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &WorkloadStats{
		registry: reg,
		reads: factory.NewCounter(prometheus.CounterOpts{
			Name: "neurogeo_reads_total",
			Help: "Point lookups served.",
		}),
		writes: factory.NewCounter(prometheus.CounterOpts{
			Name: "neurogeo_writes_total",
			Help: "Points inserted, batch members included.",
		}),
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "neurogeo_hits_total",
			Help: "Point lookups that found a point.",
		}),
		removes: factory.NewCounter(prometheus.CounterOpts{
			Name: "neurogeo_removes_total",
			Help: "Points removed.",
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neurogeo_queries_total",
			Help: "Spatial queries by kind.",
		}, []string{"kind"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "neurogeo_query_duration_seconds",
			Help:    "Spatial query latency by kind.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"kind"}),
		retrains: factory.NewCounter(prometheus.CounterOpts{
			Name: "neurogeo_retrains_total",
			Help: "Model refits.",
		}),
		items: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neurogeo_items",
			Help: "Points currently stored.",
		}),
		buckets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neurogeo_buckets",
			Help: "Buckets in the learned table.",
		}),
	}
}

func (ws *WorkloadStats) RecordRead() {
	atomic.AddUint64(&ws.ReadCount, 1)
	ws.reads.Inc()
}

func (ws *WorkloadStats) RecordWrite() {
	ws.RecordWrites(1)
}

func (ws *WorkloadStats) RecordWrites(n int) {
	atomic.AddUint64(&ws.WriteCount, uint64(n))
	ws.writes.Add(float64(n))
}

func (ws *WorkloadStats) RecordHit() {
	atomic.AddUint64(&ws.HitCount, 1)
	ws.hits.Inc()
}

func (ws *WorkloadStats) RecordRemove() {
	ws.removes.Inc()
}

// RecordQuery counts one range, radius, nearest or knn query.
func (ws *WorkloadStats) RecordQuery(kind string, elapsed time.Duration) {
	ws.queries.WithLabelValues(kind).Inc()
	ws.latency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (ws *WorkloadStats) RecordRetrain() {
	ws.retrains.Inc()
}

// SetShape publishes the current table size.
func (ws *WorkloadStats) SetShape(items, buckets int) {
	ws.items.Set(float64(items))
	ws.buckets.Set(float64(buckets))
}

func (ws *WorkloadStats) Registry() *prometheus.Registry {
	return ws.registry
}

// Handler serves the registry in the Prometheus text format.
func (ws *WorkloadStats) Handler() http.Handler {
	return promhttp.HandlerFor(ws.registry, promhttp.HandlerOpts{})
}

func (ws *WorkloadStats) GetReadWriteRatio() float64 {
	reads := atomic.LoadUint64(&ws.ReadCount)
	writes := atomic.LoadUint64(&ws.WriteCount)

	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}

func (ws *WorkloadStats) GetHitRate() float64 {
	reads := atomic.LoadUint64(&ws.ReadCount)
	if reads == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&ws.HitCount)) / float64(reads)
}
