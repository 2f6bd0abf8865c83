// Package observability holds the Prometheus instruments for playback and
// extraction.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by lector. Each Metrics
// owns its registry, so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Utterances        *prometheus.CounterVec
	ExtractRequests   *prometheus.CounterVec
	ExtractLatency    prometheus.Histogram
	ExtractCacheHits  prometheus.Counter
	ExtractedDocBytes prometheus.Histogram
}

// NewMetrics creates the instruments under namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterance_events_total",
			Help:      "Playback controller utterance events by type.",
		}, []string{"event"}),
		ExtractRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_requests_total",
			Help:      "Extraction requests by HTTP status code.",
		}, []string{"code"}),
		ExtractLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_latency_ms",
			Help:      "Extraction request latency in milliseconds.",
			Buckets:   []float64{5, 25, 100, 250, 500, 1000, 2500, 10000},
		}),
		ExtractCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_cache_hits_total",
			Help:      "Extractions answered from the cache.",
		}),
		ExtractedDocBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_upload_bytes",
			Help:      "Size of uploaded documents in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 9),
		}),
	}
}

// Dispatched counts an utterance handed to the engine.
func (m *Metrics) Dispatched() { m.Utterances.WithLabelValues("dispatched").Inc() }

// Cancelled counts an utterance cancelled before it ended.
func (m *Metrics) Cancelled() { m.Utterances.WithLabelValues("cancelled").Inc() }

// Failed counts an engine failure.
func (m *Metrics) Failed() { m.Utterances.WithLabelValues("failed").Inc() }

// StaleEvent counts an engine event discarded because its utterance was
// superseded.
func (m *Metrics) StaleEvent() { m.Utterances.WithLabelValues("stale").Inc() }

// ObserveExtraction records one extraction request.
func (m *Metrics) ObserveExtraction(code int, d time.Duration) {
	m.ExtractRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	m.ExtractLatency.Observe(float64(d.Milliseconds()))
}

// Registry returns the registry backing the instruments.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
