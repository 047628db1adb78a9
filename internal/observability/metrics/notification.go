package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks emergency push deliveries
type NotificationMetrics struct {
	Deliveries       *prometheus.CounterVec   // provider, status
	DeliveryDuration *prometheus.HistogramVec // provider
}

// NewNotificationMetrics creates and registers notification metrics
func NewNotificationMetrics(registry prometheus.Registerer) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoolog_notification_deliveries_total",
			Help: "Emergency push deliveries by provider and status",
		}, []string{"provider", "status"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoolog_notification_delivery_duration_seconds",
			Help:    "Emergency push delivery latency",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"provider"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDelivery records one delivery attempt. A nil receiver is a no-op.
func (m *NotificationMetrics) RecordDelivery(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(provider, status).Inc()
	m.DeliveryDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Describe implements prometheus.Collector
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Deliveries.Describe(ch)
	m.DeliveryDuration.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Deliveries.Collect(ch)
	m.DeliveryDuration.Collect(ch)
}
