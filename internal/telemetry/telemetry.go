package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

// Shutdown flushes and stops the trace provider.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Init configures the global OpenTelemetry trace provider from the telemetry
// section. An empty otlp_endpoint disables tracing and returns a noop
// shutdown. Exporter construction failures are logged and also leave tracing
// disabled so the daemon still starts.
func Init(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Shutdown, error) {
	if cfg == nil {
		return noop, nil
	}
	endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint)
	if endpoint == "" {
		return noop, nil
	}
	logger = logging.NewComponentLogger(logger, "telemetry")

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(hostPort(endpoint)),
		otlptracehttp.WithTimeout(3 * time.Second),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	if !strings.HasPrefix(endpoint, "https://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(initCtx, opts...)
	if err != nil {
		logging.WarnWithContext(logger, "trace exporter unavailable", "telemetry_disabled",
			logging.String("endpoint", endpoint),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telemetry.otlp_endpoint"),
			logging.String(logging.FieldImpact, "traces are not exported"),
		)
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName(cfg))),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Telemetry.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.Info("tracing enabled",
		logging.String("endpoint", endpoint),
		logging.Float64("sample_rate", cfg.Telemetry.SampleRate),
	)
	return tp.Shutdown, nil
}

func hostPort(endpoint string) string {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	return strings.TrimRight(endpoint, "/")
}

func serviceName(cfg *config.Config) string {
	if name := strings.TrimSpace(cfg.Telemetry.ServiceName); name != "" {
		return name
	}
	return "cardsync"
}
