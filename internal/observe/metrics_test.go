package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue sums the data points of a counter whose attributes include kv.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, kv ...attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, want := range kv {
			if got, ok := dp.Attributes.Value(want.Key); !ok || got != want.Value {
				match = false
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAttempt(ctx, "primary", "error")
	m.RecordAttempt(ctx, "secondary", "ok")
	m.RecordOutcome(ctx, "secondary")
	m.RecordDetection(ctx, "acoustic")
	m.RecordDetection(ctx, "acoustic")
	m.RecordReference(ctx, "miss")
	m.RecordDuration(ctx, "assess", 0.2)

	rm := collect(t, reader)
	if got := counterValue(t, rm, "pronounce.ladder.attempts", attribute.String("stage", "primary"), attribute.String("status", "error")); got != 1 {
		t.Fatalf("primary errors = %d, want 1", got)
	}
	if got := counterValue(t, rm, "pronounce.ladder.outcomes", attribute.String("source", "secondary")); got != 1 {
		t.Fatalf("secondary outcomes = %d, want 1", got)
	}
	if got := counterValue(t, rm, "pronounce.nonnative.detections", attribute.String("source", "acoustic")); got != 2 {
		t.Fatalf("acoustic detections = %d, want 2", got)
	}
	if got := counterValue(t, rm, "pronounce.reference.lookups", attribute.String("status", "miss")); got != 1 {
		t.Fatalf("reference misses = %d, want 1", got)
	}

	h := findMetric(rm, "pronounce.assessment.duration")
	if h == nil {
		t.Fatal("assessment duration histogram not found")
	}
	hist, ok := h.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("histogram = %+v", h.Data)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAttempt(ctx, "primary", "ok")
	m.RecordOutcome(ctx, "demo")
	m.RecordDuration(ctx, "evaluate", 1)
	m.RecordDetection(ctx, "text")
	m.RecordReference(ctx, "hit")
}
