// Package telemetry installs the OpenTelemetry tracer provider and the
// agentkit global tracer that crew and tool spans are recorded through.
package telemetry

import (
	"context"
	"fmt"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/logging"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "leadsynapse"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Setup installs an OTLP/HTTP exporter when telemetry is enabled, otherwise
// a no-op provider.
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		telemetry.SetGlobalTracer(nil)
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	// Schemaless so the resource merges with any SDK semconv version.
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	telemetry.SetGlobalTracer(telemetry.NewTracer(ServiceName, cfg.Debug))

	logging.New().WithComponent("telemetry").Info("tracing enabled", map[string]interface{}{
		"endpoint": cfg.Endpoint,
	})
	return tp.Shutdown, nil
}
