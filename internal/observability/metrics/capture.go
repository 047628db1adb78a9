package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics tracks the observation capture workflow
type CaptureMetrics struct {
	SessionsActive    prometheus.Gauge
	Recordings        *prometheus.CounterVec   // result: saved, failed, permission, busy, no_device, unsupported, format
	RecordingDuration prometheus.Histogram     // seconds of audio per saved recording
	Processing        *prometheus.CounterVec   // mode: audio, text; status
	ProcessDuration   *prometheus.HistogramVec // mode
	Submissions       *prometheus.CounterVec   // emergency: true, false; status
}

// NewCaptureMetrics creates and registers capture metrics
func NewCaptureMetrics(registry prometheus.Registerer) (*CaptureMetrics, error) {
	m := &CaptureMetrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zoolog_capture_sessions_active",
			Help: "Number of open capture sessions",
		}),
		Recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoolog_capture_recordings_total",
			Help: "Recording attempts by result",
		}, []string{"result"}),
		RecordingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zoolog_capture_recording_duration_seconds",
			Help:    "Length of saved recordings",
			Buckets: prometheus.ExponentialBuckets(BucketStart1s, BucketFactor2, BucketCount10),
		}),
		Processing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoolog_capture_processing_total",
			Help: "Transcription and structuring runs by input mode and status",
		}, []string{"mode", "status"}),
		ProcessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zoolog_capture_processing_duration_seconds",
			Help:    "Time from process request to reviewable form",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		}, []string{"mode"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoolog_capture_submissions_total",
			Help: "Observation submissions by emergency flag and status",
		}, []string{"emergency", "status"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CaptureMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SessionsActive, m.Recordings, m.RecordingDuration,
		m.Processing, m.ProcessDuration, m.Submissions,
	}
}

// Describe implements prometheus.Collector
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
