package metrics

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/atrtrace/atr/internal/logger"
)

const instrumentationName = "github.com/atrtrace/atr"

// Tracing owns the OpenTelemetry tracer provider of a run.
type Tracing struct {
	tp *sdktrace.TracerProvider
}

// InitTracing installs a tracer provider that prints spans as JSON to w
// and sets it as the global provider.
func InitTracing(ctx context.Context, w io.Writer, version string) (*Tracing, error) {
	log := logger.FromContext(ctx)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("atr"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Debug("Tracing initialized with stdout exporter")

	return &Tracing{tp: tp}, nil
}

// Tracer returns a tracer from the owned provider.
func (t *Tracing) Tracer() oteltrace.Tracer {
	return t.tp.Tracer(instrumentationName)
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.tp == nil {
		return nil
	}
	if err := t.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	logger.FromContext(ctx).Debug("Tracing shutdown")
	return nil
}
