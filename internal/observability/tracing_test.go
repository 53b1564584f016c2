package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withRecorder installs an always-sampling provider for the test and restores
// the previous global afterwards.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(sr),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty trace ID from background context, got %q", id)
	}
}

func TestStartSpan_RecordsNameAndAttributes(t *testing.T) {
	sr := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "orchestrator.breakdown",
		attribute.String("window", "1h0m0s"),
	)
	if TraceIDFromContext(ctx) == "" {
		t.Error("expected a trace ID inside a sampled span")
	}
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "orchestrator.breakdown" {
		t.Errorf("unexpected span name %q", ended[0].Name())
	}
	var found bool
	for _, kv := range ended[0].Attributes() {
		if kv.Key == "window" && kv.Value.AsString() == "1h0m0s" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected window attribute, got %v", ended[0].Attributes())
	}
	if ended[0].InstrumentationScope().Name != tracerName {
		t.Errorf("expected scope %q, got %q", tracerName, ended[0].InstrumentationScope().Name)
	}
}

func TestStartSpan_ChildSharesTrace(t *testing.T) {
	withRecorder(t)

	ctx, parent := StartSpan(context.Background(), "parent")
	defer parent.End()
	child, span := StartSpan(ctx, "child")
	defer span.End()

	if TraceIDFromContext(ctx) != TraceIDFromContext(child) {
		t.Error("child span must share the parent's trace ID")
	}
}

func TestInitTracer_ReturnsShutdown(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := InitTracer("search-layout-test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
