// Package observe provides observability primitives for the wavegrain
// pipeline: OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all wavegrain metrics.
const meterName = "github.com/MrWong99/wavegrain"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ExtractionDuration tracks feature-extraction latency per file.
	ExtractionDuration metric.Float64Histogram

	// SynthesisDuration tracks the wall-clock cost of the denoising loop per file.
	SynthesisDuration metric.Float64Histogram

	// WriteDuration tracks output encoding and write latency per file.
	WriteDuration metric.Float64Histogram

	// --- Quality ---

	// RTF records the per-file real-time factor (audio seconds per wall second).
	RTF metric.Float64Histogram

	// --- Counters ---

	// FilesProcessed counts completed files. Use with attribute:
	//   attribute.String("status", "ok"|"failed")
	FilesProcessed metric.Int64Counter

	// --- Gauges ---

	// ActiveWorkers tracks the number of files currently being synthesized.
	ActiveWorkers metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-file pipeline stages, from sub-second extraction to multi-minute
// synthesis runs.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// rtfBuckets covers real-time factors from far-below to far-above real time.
var rtfBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ExtractionDuration, err = m.Float64Histogram("wavegrain.extraction.duration",
		metric.WithDescription("Latency of log-mel feature extraction per file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("wavegrain.synthesis.duration",
		metric.WithDescription("Wall-clock cost of the denoising loop per file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WriteDuration, err = m.Float64Histogram("wavegrain.write.duration",
		metric.WithDescription("Output encoding and write latency per file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RTF, err = m.Float64Histogram("wavegrain.synthesis.rtf",
		metric.WithDescription("Per-file real-time factor, audio seconds per wall-clock second."),
		metric.WithExplicitBucketBoundaries(rtfBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FilesProcessed, err = m.Int64Counter("wavegrain.files.processed",
		metric.WithDescription("Total files processed by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveWorkers, err = m.Int64UpDownCounter("wavegrain.active_workers",
		metric.WithDescription("Number of files currently being synthesized."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFile is a convenience method that records a processed-file counter
// increment with the standard status attribute.
func (m *Metrics) RecordFile(ctx context.Context, status string) {
	m.FilesProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
