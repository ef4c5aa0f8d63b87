// Package metrics provides Prometheus metrics for preview generation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "previewgen"

var (
	// GenerateTotal counts preview generations by mode and outcome.
	GenerateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_total",
			Help:      "Total number of preview generations",
		},
		[]string{"mode", "outcome"},
	)

	// GenerateDuration measures preview generation duration.
	GenerateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_duration_seconds",
			Help:      "Duration of preview generations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	// TwoPassTotal counts generations that went through a coarse pass.
	TwoPassTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "two_pass_total",
			Help:      "Total number of generations that used a coarse pass",
		},
	)

	// PreviewBytes observes the size of encoded previews.
	PreviewBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "preview_bytes",
			Help:      "Distribution of encoded preview sizes",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 10),
		},
	)

	// ErrorsTotal counts errors by stage.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"kind", "stage"},
	)

	// BatchInFlight tracks jobs currently being processed.
	BatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_in_flight",
			Help:      "Number of batch jobs in flight",
		},
	)
)

// RecordGenerate records one generation.
func RecordGenerate(mode, outcome string, duration time.Duration) {
	GenerateTotal.WithLabelValues(mode, outcome).Inc()
	GenerateDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordPreview records a successful preview.
func RecordPreview(size int, twoPass bool) {
	PreviewBytes.Observe(float64(size))
	if twoPass {
		TwoPassTotal.Inc()
	}
}

// RecordError records an error.
func RecordError(kind, stage string) {
	ErrorsTotal.WithLabelValues(kind, stage).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
