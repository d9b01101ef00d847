package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig holds the configuration for OpenTelemetry tracing.
// Exporter endpoint, service name, and environment come from the
// standard OTEL_* environment variables.
type TelemetryConfig struct {
	Enabled bool
	Version string
	Commit  string
}

// TelemetryShutdown gracefully flushes and shuts down the telemetry pipeline.
type TelemetryShutdown func(ctx context.Context) error

// SetupTelemetry initializes the OpenTelemetry tracing pipeline.
// When disabled or cfg is nil, it returns a noop shutdown and leaves the
// global TracerProvider as the default noop.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	origTP := otel.GetTracerProvider()
	origPropagator := otel.GetTextMapPropagator()
	origErrorHandler := otel.GetErrorHandler()

	res, err := telemetryResource(cfg.Version, cfg.Commit)
	if err != nil {
		return noopShutdown, err
	}

	// The exporter reads OTEL_EXPORTER_OTLP_ENDPOINT and friends itself.
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("create otel exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Install a silent error handler so export failures never reach stderr.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))

	return func(shutdownCtx context.Context) error {
		err := provider.Shutdown(shutdownCtx)

		otel.SetTracerProvider(origTP)
		otel.SetTextMapPropagator(origPropagator)
		otel.SetErrorHandler(origErrorHandler)

		if err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}

		return nil
	}, nil
}

func telemetryResource(version, commit string) (*resource.Resource, error) {
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = "scribe"
	}

	environment := os.Getenv("OTEL_ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
		attribute.String("service.namespace", "scribe"),
		attribute.String("deployment.environment", environment),
	}

	if commit != "" {
		attrs = append(attrs, attribute.String("service.commit", commit))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	return res, nil
}

// Tracer returns a named tracer from the global TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsTelemetryEnabled checks the OTEL_ENABLED env var.
func IsTelemetryEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED")))
	return v == "1" || v == "true" || v == "yes"
}

func noopShutdown(context.Context) error { return nil }
