// Package tracing bootstraps OpenTelemetry span export and exposes the
// small set of span-starting helpers the orchestrator cycle, each LLM
// provider call, and each forge call instrument themselves with. Tracing
// is ambient and opt-in (internal/config.TelemetryConfig.Enabled) — no
// spec.md Non-goal excludes observability of the engine's own behavior,
// only of the synthetic agents' own analytics surface.
//
// Grounded on Strob0t-CodeForge/internal/adapter/otel/setup.go's
// InitTracer: same Enabled-gate-returns-no-op-shutdown shape, same
// resource/exporter/provider construction sequence. The teacher's setup
// also wires an OTLP metric exporter; this package does not, since
// neither otlpmetricgrpc nor the metric SDK appear in the dependency set
// this module actually carries (no component here needs a counter/gauge
// surface beyond the structured log lines C8/C9/C10 already emit).
package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ShutdownFunc flushes and shuts down the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// Config mirrors internal/config.TelemetryConfig.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Init configures the global TracerProvider. When cfg.Enabled is false the
// global provider is left as OpenTelemetry's default no-op, and a no-op
// shutdown is returned — every span-starting helper in this package is
// therefore safe to call unconditionally regardless of whether Init ran.
func Init(cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		slog.Info("tracing: disabled, using no-op tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, err
	}

	var dialOpts []grpc.DialOption
	if cfg.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOpts...),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("tracing: initialized", "endpoint", cfg.Endpoint, "service", cfg.ServiceName)

	return func(ctx context.Context) error {
		slog.Info("tracing: shutting down tracer provider")
		return tp.Shutdown(ctx)
	}, nil
}

var tracer = otel.Tracer("forgepulse/autonomy-engine")

// StartCycle spans one full Orchestrator cycle (C8).
func StartCycle(ctx context.Context, seed int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "orchestrator.cycle", trace.WithAttributes(attribute.Int64("cycle.seed", seed)))
}

// StartProviderCall spans one LLM Backend Chain (C3) provider attempt.
func StartProviderCall(ctx context.Context, provider string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "llm.chat", trace.WithAttributes(attribute.String("llm.provider", provider)))
}

// StartForgeCall spans one Forge Client (C4) call.
func StartForgeCall(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "forge."+op, trace.WithAttributes(attribute.String("forge.op", op)))
}
