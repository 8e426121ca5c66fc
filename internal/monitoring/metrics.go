// Package monitoring exposes Prometheus metrics for the crawl pipeline.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing, so components can run unmetered in tests.
type Metrics struct {
	JobsTotal          *prometheus.CounterVec
	CaptureDuration    prometheus.Histogram
	ExtractionDuration prometheus.Histogram
	BatchSize          prometheus.Gauge
}

// New registers and returns the application metrics.
func New() *Metrics {
	return &Metrics{
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_crawl_jobs_total",
			Help: "Crawl jobs by outcome",
		}, []string{"outcome"}), // succeeded, degraded, failed, skipped
		CaptureDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_capture_duration_seconds",
			Help:    "Time spent rendering and screenshotting one page",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ExtractionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_extraction_duration_seconds",
			Help:    "Time spent in vision model extraction per screenshot",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		BatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_batch_size",
			Help: "Number of targets in the most recent batch",
		}),
	}
}

// JobOutcome records one finished job.
func (m *Metrics) JobOutcome(outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCapture records one capture duration.
func (m *Metrics) ObserveCapture(d time.Duration) {
	if m == nil {
		return
	}
	m.CaptureDuration.Observe(d.Seconds())
}

// ObserveExtraction records one extraction duration.
func (m *Metrics) ObserveExtraction(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Observe(d.Seconds())
}

// SetBatchSize records the size of a starting batch.
func (m *Metrics) SetBatchSize(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Set(float64(n))
}
