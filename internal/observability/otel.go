// Package observability installs the process-wide OpenTelemetry tracer
// provider. HTTP spans come from otelgin, query spans from the gorm plugin,
// and the assistant and dispatcher open their own child spans.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
)

// Shutdown flushes pending spans and releases the exporter.
type Shutdown func(context.Context) error

func nopShutdown(context.Context) error { return nil }

// Replaced in tests.
var (
	newExporter = func(ctx context.Context, opts ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return otlptracegrpc.New(ctx, opts...)
	}
	newResource = func(ctx context.Context, attrs ...attribute.KeyValue) (*resource.Resource, error) {
		return resource.New(ctx,
			resource.WithAttributes(attrs...),
			resource.WithHost(),
			resource.WithProcessRuntimeName(),
		)
	}
)

// Attributes describes the running deployment: which snapshot backend holds
// reminders and which channels and collaborators are configured.
func Attributes(cfg config.Config) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("macla.store.driver", cfg.Store.Driver),
		attribute.String("macla.dispatch.policy", cfg.Dispatch.UndeliveredPolicy),
		attribute.Bool("macla.twilio.enabled", cfg.Twilio.Enabled()),
		attribute.Bool("macla.calendar.enabled", cfg.Google.Enabled()),
		attribute.Bool("macla.openai.enabled", cfg.OpenAI.APIKey != ""),
	}
}

// SetupOTel exports spans over OTLP/gRPC when cfg.Enabled. Globals are only
// replaced once the exporter and resource were both built, so a failure
// leaves the no-op provider in place.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string, attrs ...attribute.KeyValue) (Shutdown, error) {
	if !cfg.Enabled {
		return nopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exp, err := newExporter(ctx, opts...)
	if err != nil {
		return nil, err
	}

	base := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	}
	res, err := newResource(ctx, append(base, attrs...)...)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}
