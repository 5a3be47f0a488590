// Package observe wires OpenTelemetry metrics and tracing for the
// assessment service. Metrics are exported through a Prometheus bridge and
// scraped from /metrics. Tests should build their own [Metrics] with
// [NewMetrics] and a ManualReader backed provider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pronounce-go"

type Metrics struct {
	// LadderAttempts counts remote attempts by stage and status
	// (ok, error, timeout).
	LadderAttempts metric.Int64Counter

	// LadderOutcomes counts which stage produced the returned result.
	LadderOutcomes metric.Int64Counter

	// AssessmentDuration tracks end-to-end latency by pipeline.
	AssessmentDuration metric.Float64Histogram

	// NonNativeDetections counts fired detectors by source.
	NonNativeDetections metric.Int64Counter

	// ReferenceLookups counts comparator runs by status.
	ReferenceLookups metric.Int64Counter

	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LadderAttempts, err = m.Int64Counter("pronounce.ladder.attempts",
		metric.WithDescription("Remote assessment attempts by ladder stage and status."),
	); err != nil {
		return nil, err
	}
	if met.LadderOutcomes, err = m.Int64Counter("pronounce.ladder.outcomes",
		metric.WithDescription("Remote assessment results by producing stage."),
	); err != nil {
		return nil, err
	}
	if met.AssessmentDuration, err = m.Float64Histogram("pronounce.assessment.duration",
		metric.WithDescription("Assessment latency by pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NonNativeDetections, err = m.Int64Counter("pronounce.nonnative.detections",
		metric.WithDescription("Non-native pattern detections by detector."),
	); err != nil {
		return nil, err
	}
	if met.ReferenceLookups, err = m.Int64Counter("pronounce.reference.lookups",
		metric.WithDescription("Reference comparisons by status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("pronounce.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance bound to the global
// meter provider.
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

func (m *Metrics) RecordAttempt(ctx context.Context, stage, status string) {
	if m == nil {
		return
	}
	m.LadderAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordOutcome(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.LadderOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) RecordDuration(ctx context.Context, pipeline string, seconds float64) {
	if m == nil {
		return
	}
	m.AssessmentDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("pipeline", pipeline)))
}

func (m *Metrics) RecordDetection(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.NonNativeDetections.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) RecordReference(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.ReferenceLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
