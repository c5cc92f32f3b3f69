package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Options struct {
	ServiceName string
	Version     string
	Environment string
	Endpoint    string
	SampleRatio float64
}

// Sampler samples root spans at SampleRatio and otherwise follows the parent.
func (o Options) Sampler() sdktrace.Sampler {
	switch {
	case o.SampleRatio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case o.SampleRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
	}
}

func (o Options) resource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(o.ServiceName),
			semconv.ServiceVersionKey.String(o.Version),
			semconv.DeploymentEnvironmentKey.String(o.Environment),
			semconv.TelemetrySDKLanguageKey.String("go"),
		),
	)
}

// InitTracerProvider installs a global tracer provider exporting over OTLP
// gRPC and returns its shutdown function.
func InitTracerProvider(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		return nil, errors.New("tracing: service name is required")
	}
	if opts.Endpoint == "" {
		return nil, errors.New("tracing: exporter endpoint is required")
	}

	conn, err := grpc.NewClient(opts.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("tracing: dial collector: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res, err := opts.resource(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.Sampler()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry initialized",
		slog.String("service", opts.ServiceName),
		slog.String("endpoint", opts.Endpoint),
		slog.Float64("sample_ratio", opts.SampleRatio),
	)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		return errors.Join(tp.Shutdown(ctx), conn.Close())
	}, nil
}
