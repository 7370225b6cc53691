package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSpanAttributeBuilder(t *testing.T) {
	builder := NewSpanAttributeBuilder().
		WithTool("calendar-manage").
		WithService("calendar").
		WithOperation("list").
		WithCalendarDomain("example.com").
		WithResource("calendar", "primary").
		WithCalendarCount(3)

	attrs := builder.Build()

	if len(attrs) != 7 {
		t.Errorf("expected 7 attributes, got %d", len(attrs))
	}

	// Verify attributes are present
	attrMap := make(map[string]interface{})
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	if attrMap[SpanAttrTool] != "calendar-manage" {
		t.Errorf("expected tool 'calendar-manage', got %v", attrMap[SpanAttrTool])
	}
	if attrMap[SpanAttrService] != "calendar" {
		t.Errorf("expected service 'calendar', got %v", attrMap[SpanAttrService])
	}
	if attrMap[SpanAttrOperation] != "list" {
		t.Errorf("expected operation 'list', got %v", attrMap[SpanAttrOperation])
	}
	if attrMap[SpanAttrCalendarDomain] != "example.com" {
		t.Errorf("expected calendar domain 'example.com', got %v", attrMap[SpanAttrCalendarDomain])
	}
	if attrMap[SpanAttrResourceType] != "calendar" {
		t.Errorf("expected resource type 'calendar', got %v", attrMap[SpanAttrResourceType])
	}
	if attrMap[SpanAttrResourceID] != "primary" {
		t.Errorf("expected resource id 'primary', got %v", attrMap[SpanAttrResourceID])
	}
	if attrMap[SpanAttrCalendarCount] != int64(3) {
		t.Errorf("expected calendar count 3, got %v", attrMap[SpanAttrCalendarCount])
	}
}

func TestSpanAttributeBuilder_EmptyValues(t *testing.T) {
	// Empty values should not be added
	builder := NewSpanAttributeBuilder().
		WithTool("test_tool").
		WithCalendarDomain("").
		WithResource("", "")

	attrs := builder.Build()

	// Only tool should be present
	if len(attrs) != 1 {
		t.Errorf("expected 1 attribute (only tool), got %d", len(attrs))
	}
}

func TestStartSpan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize provider to set global tracer
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	spanCtx, span := StartSpan(ctx, "test-span")
	defer span.End()

	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}
	if span == nil {
		t.Error("expected span to be non-nil")
	}
}

func TestStartToolSpan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	spanCtx, span := StartToolSpan(ctx, "calendar-availability")
	defer span.End()

	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}
	if span == nil {
		t.Error("expected span to be non-nil")
	}
}

func TestStartGoogleAPISpan(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	spanCtx, span := StartGoogleAPISpan(ctx, ServiceCalendar, OperationFreeBusy)
	defer span.End()

	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}
	if span == nil {
		t.Error("expected span to be non-nil")
	}
}

func TestSetSpanError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	_, span := StartSpan(ctx, "test-span")

	// Should not panic
	SetSpanError(span, errors.New("test error"))
	SetSpanError(span, nil) // nil error should be safe
	span.End()
}

func TestSetSpanSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	_, span := StartSpan(ctx, "test-span")

	// Should not panic
	SetSpanSuccess(span)
	span.End()
}

func TestAddSpanEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	_, span := StartSpan(ctx, "test-span")

	// Should not panic
	AddSpanEvent(span, "test-event")
	span.End()
}

func TestGetTraceID_NoSpan(t *testing.T) {
	ctx := context.Background()
	traceID := GetTraceID(ctx)
	if traceID != "" {
		t.Errorf("expected empty trace ID for context without span, got %q", traceID)
	}
}

func TestGetSpanID_NoSpan(t *testing.T) {
	ctx := context.Background()
	spanID := GetSpanID(ctx)
	if spanID != "" {
		t.Errorf("expected empty span ID for context without span, got %q", spanID)
	}
}

func TestStartGoogleAPISpan_Recorded(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartGoogleAPISpan(context.Background(), ServiceCalendar, OperationBatch,
		NewSpanAttributeBuilder().WithCalendarCount(2).Build()...)
	SetSpanError(span, errors.New("all calendars failed"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "google.calendar.batch" {
		t.Errorf("span name = %q, want %q", ended[0].Name(), "google.calendar.batch")
	}
	if ended[0].SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", ended[0].SpanKind())
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", ended[0].Status().Code)
	}
}
