package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yeisme/skelvault/pkg/configs"
)

func TestResourceAttrs(t *testing.T) {
	attrs := resourceAttrs(configs.TracingConfig{
		ServiceName:    "skelvault",
		ServiceVersion: "1.0.0",
		ResourceLabels: map[string]string{
			"service.name":           "ignored",
			"deployment.environment": "prod",
			"region":                 "eu",
		},
	})

	want := []attribute.KeyValue{
		attribute.String("service.name", "skelvault"),
		attribute.String("service.version", "1.0.0"),
		attribute.String("deployment.environment", "prod"),
		attribute.String("region", "eu"),
	}

	if len(attrs) != len(want) {
		t.Fatalf("attrs = %v", attrs)
	}

	for i := range want {
		if attrs[i] != want[i] {
			t.Errorf("attrs[%d] = %v, want %v", i, attrs[i], want[i])
		}
	}
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	err := InitTracer(configs.TracingConfig{Enabled: true, ServiceName: "x", ExporterType: "jaeger"})
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}

	if err := InitTracer(configs.TracingConfig{}); err != nil {
		t.Fatalf("disabled tracer: %v", err)
	}
}

func TestStartModuleSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartModuleSpan(context.Background(), "file", "upload", AttrKey.String("node-1"))
	End(span, errors.New("boom"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d", len(spans))
	}

	s := spans[0]
	if s.Name() != "file.upload" {
		t.Errorf("name = %q", s.Name())
	}

	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", s.Status())
	}

	got := map[attribute.Key]string{}
	for _, kv := range s.Attributes() {
		got[kv.Key] = kv.Value.AsString()
	}

	if got[AttrModule] != "file" || got[AttrAction] != "upload" || got[AttrKey] != "node-1" {
		t.Errorf("attributes = %v", got)
	}
}
