package otelcol

import (
	"context"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs a global tracer provider when OTEL.ADDR is set. Without it
// the no-op provider stays in place and spans cost nothing.
var Module = fx.Module("otelcol", fx.Invoke(registerTracing))

func defaultTraceProviderOption(cfg *config.Config) []trace.TracerProviderOption {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		res = resource.Default()
	}
	return []trace.TracerProviderOption{
		trace.WithResource(res),
	}
}

func ProvideTrace(exporter trace.SpanExporter, opts ...trace.TracerProviderOption) *trace.TracerProvider {
	opts = append(opts, trace.WithBatcher(exporter))
	return trace.NewTracerProvider(opts...)
}

func registerTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Otel.Addr == "" {
		zap.L().Info("tracing disabled, OTEL.ADDR not set")
		return nil
	}

	exporter, err := exporters.ProvideHttp(cfg)
	if err != nil {
		return err
	}

	tp := ProvideTrace(exporter, defaultTraceProviderOption(cfg)...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	zap.L().Info("tracing enabled", zap.String("endpoint", cfg.Otel.Addr))
	return nil
}
