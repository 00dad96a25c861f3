package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate validation error")
	}
}

func TestSpanHelpers_WithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	SetSpanAttribute(ctx, "k", "v")
	SetSpanError(ctx, errors.New("x"))
}

func TestSpanHelpers_Recorded(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, span := tp.Tracer("test").Start(context.Background(), "provision")
	SetSpanAttribute(ctx, "attempts", 3)
	SetSpanError(ctx, errors.New("denied"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("expected the error to be recorded as an event, got %d", len(spans[0].Events()))
	}
	found := false
	for _, a := range spans[0].Attributes() {
		if string(a.Key) == "attempts" && a.Value.AsInt64() == 3 {
			found = true
		}
	}
	if !found {
		t.Error("expected attempts attribute")
	}
}

func TestMetrics_RecordOperation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	ctx := context.Background()
	m.RecordOperation(ctx, "provisioning", "ensure", "inserted", 10*time.Millisecond)
	m.RecordOperation(ctx, "provisioning", "ensure", "inserted", 20*time.Millisecond)
	m.RecordError(ctx, "FORBIDDEN", "provisioning")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[md.Name] += dp.Value
				}
			}
		}
	}
	if totals["backend.operation.total"] != 2 {
		t.Errorf("expected 2 operations, got %d", totals["backend.operation.total"])
	}
	if totals["backend.error.total"] != 1 {
		t.Errorf("expected 1 error, got %d", totals["backend.error.total"])
	}

	var nilMetrics *Metrics
	nilMetrics.RecordOperation(ctx, "x", "y", "z", time.Second)
	nilMetrics.RecordError(ctx, "x", "y")
}
