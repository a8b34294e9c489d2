package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
)

// TracingConfig controls the global tracer provider. Node tick and inference
// spans go through whatever this configures.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // collector address when Exporter == otlp
	SampleRatio float64
}

// TracingConfigFromEnv reads SIM_TRACING_* variables. Unset variables fall
// back to a disabled, stdout-exporting, always-sampling config.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("SIM_TRACING_ENABLED"), "true"),
		ServiceName: os.Getenv("SIM_TRACING_SERVICE_NAME"),
		Exporter:    strings.ToLower(os.Getenv("SIM_TRACING_EXPORTER")),
		Endpoint:    os.Getenv("SIM_OTLP_ENDPOINT"),
		SampleRatio: 1.0,
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "congestion-sim"
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	if raw := os.Getenv("SIM_TRACING_SAMPLE_RATIO"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

// InitTracing installs the global tracer provider and propagators. The
// returned shutdown function flushes buffered spans; it is always non-nil.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Info(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "sim"),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		return stdouttrace.New(
			stdouttrace.WithWriter(os.Stdout),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes spans with a bounded deadline. Shutdown
// failures are logged, never propagated; the run's results do not depend on
// the trace backend.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
