package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("DEPLOY_ENV", "staging")

	cfg := ConfigFromEnv("scheduling-service")
	if !cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.OTLPEndpoint != "collector:4317" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Insecure || cfg.Environment != "staging" || cfg.ServiceVersion != "dev" {
		t.Fatalf("unexpected exporter settings %+v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	if cfg := ConfigFromEnv("svc"); cfg.SampleRatio != 1 {
		t.Fatalf("expected out-of-range ratio to fall back to 1, got %v", cfg.SampleRatio)
	}
}

func TestSetupDisabledInstallsPropagators(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	shutdown, err := Setup(context.Background(), Config{ServiceName: "svc"})
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown failed: %v", err)
	}
	fields := otel.GetTextMapPropagator().Fields()
	if len(fields) == 0 || fields[0] != "traceparent" {
		t.Fatalf("expected trace context propagator, got %v", fields)
	}
}

func TestResourceAttributesSkipEmpty(t *testing.T) {
	if got := resourceAttributes(Config{ServiceName: "svc"}); len(got) != 1 {
		t.Fatalf("expected only service.name, got %v", got)
	}
	if got := resourceAttributes(Config{ServiceName: "svc", ServiceVersion: "1.2.0", Environment: "prod"}); len(got) != 3 {
		t.Fatalf("expected three attributes, got %v", got)
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "book")
	defer span.End()

	captured := CaptureTraceContext(ctx)
	if captured.Traceparent == "" {
		t.Fatal("expected traceparent")
	}

	restored := CaptureTraceContext(captured.Attach(context.Background()))
	if restored != captured {
		t.Fatalf("trace context did not survive: %+v vs %+v", restored, captured)
	}
	if !CaptureTraceContext(context.Background()).Empty() {
		t.Fatal("expected empty trace context without a span")
	}
}
