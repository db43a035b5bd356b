// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	// Endpoint is host:port or a full URL. Empty disables export.
	Endpoint    string
	ServiceName string
	Environment string
}

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

// Init configures tracing and returns its shutdown hook. With no endpoint
// spans are still created by the default no-op provider and nothing leaves
// the process.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "verify-cod-orders"
	}

	var opt otlptracehttp.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opt = otlptracehttp.WithEndpointURL(cfg.Endpoint)
	} else {
		opt = otlptracehttp.WithEndpoint(cfg.Endpoint)
	}
	opts := []otlptracehttp.Option{opt}
	if strings.HasPrefix(cfg.Endpoint, "http://") || !strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
