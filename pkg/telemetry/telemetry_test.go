package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	serrors "github.com/sweetpotato0/studygen/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Disable: true})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestEndToleratesNilSpan(t *testing.T) {
	End(nil, errors.New("ignored"))
}

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func TestEndStatus(t *testing.T) {
	rec := recorder(t)

	_, ok := Start(context.Background(), "ok", TopicKey.String("t1"))
	End(ok, nil)
	_, failed := Start(context.Background(), "failed")
	End(failed, errors.New("boom"))
	_, cancelled := Start(context.Background(), "cancelled")
	End(cancelled, fmt.Errorf("run: %w", serrors.ErrCancelled))

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Fatalf("ok span status = %v", spans[0].Status())
	}
	if got := spans[0].Attributes(); len(got) != 1 || got[0] != TopicKey.String("t1") {
		t.Fatalf("unexpected attributes %v", got)
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "boom" {
		t.Fatalf("failed span status = %v", spans[1].Status())
	}
	if spans[2].Status().Code != codes.Unset {
		t.Fatalf("cancelled span should not be an error, got %v", spans[2].Status())
	}
	events := spans[2].Events()
	if len(events) != 1 || events[0].Name != "cancelled" {
		t.Fatalf("expected a cancelled event, got %v", events)
	}
}

func TestSampler(t *testing.T) {
	for _, ratio := range []float64{0, 1, 5} {
		if got := sampler(ratio).Description(); got != sdktrace.ParentBased(sdktrace.AlwaysSample()).Description() {
			t.Fatalf("ratio %v: sampler %q", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); got == sdktrace.ParentBased(sdktrace.AlwaysSample()).Description() {
		t.Fatalf("ratio 0.25 should sample by trace id, got %q", got)
	}
}

func TestServiceAttrs(t *testing.T) {
	attrs := serviceAttrs(Config{ServiceName: "studygen", ServiceVersion: "1.2.0", Environment: "test"})
	want := map[attribute.Key]string{
		"service.name":           "studygen",
		"service.version":        "1.2.0",
		"deployment.environment": "test",
	}
	if len(attrs) != len(want) {
		t.Fatalf("unexpected attrs %v", attrs)
	}
	for _, kv := range attrs {
		if want[kv.Key] != kv.Value.AsString() {
			t.Fatalf("attr %s = %q", kv.Key, kv.Value.AsString())
		}
	}
}
