package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics tracks calls to the zoo REST backend
type BackendMetrics struct {
	Requests        *prometheus.CounterVec   // operation, status_code
	RequestDuration *prometheus.HistogramVec // operation
	CacheHits       *prometheus.CounterVec   // cache: animals; result: hit, miss
}

// NewBackendMetrics creates and registers backend metrics
func NewBackendMetrics(registry prometheus.Registerer) (*BackendMetrics, error) {
	m := &BackendMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoolog_backend_requests_total",
			Help: "Backend requests by operation and HTTP status (0 = transport error)",
		}, []string{"operation", "status_code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoolog_backend_request_duration_seconds",
			Help:    "Backend request latency",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"operation"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoolog_backend_cache_total",
			Help: "Backend response cache lookups",
		}, []string{"cache", "result"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest records one backend call. A nil receiver is a no-op.
func (m *BackendMetrics) RecordRequest(operation string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCache records a cache lookup. A nil receiver is a no-op.
func (m *BackendMetrics) RecordCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheHits.WithLabelValues(cache, result).Inc()
}

// Describe implements prometheus.Collector
func (m *BackendMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.RequestDuration.Describe(ch)
	m.CacheHits.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *BackendMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.RequestDuration.Collect(ch)
	m.CacheHits.Collect(ch)
}
