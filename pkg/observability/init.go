// Package observability sets up OpenTelemetry tracing for shredding runs.
//
// Tracing is off unless enabled. When enabled, spans are exported to a
// writer (stderr by default) through the stdout exporter:
//
//	shutdown, err := observability.InitTracing(observability.TracingConfig{
//		Enabled:      true,
//		ServiceName:  "shred",
//		SamplingRate: 1,
//	})
//	defer shutdown(ctx)
package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// InstrumentationName names the tracer used by this module.
const InstrumentationName = "github.com/ajitpratap0/shredder"

var (
	mu     sync.RWMutex
	tracer trace.Tracer = noop.NewTracerProvider().Tracer(InstrumentationName)
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	Writer         io.Writer // Span output, stderr when nil
	PrettyPrint    bool
	BatchTimeout   time.Duration
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// DefaultTracingConfig returns a disabled configuration with sane values
// for everything else.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "shred",
		ServiceVersion: "dev",
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   0.1, // 10% sampling
		BatchTimeout:   5 * time.Second,
	}
}

// InitTracing installs a tracer provider built from cfg as the global one.
// A disabled configuration installs a no-op provider. The returned function
// must be called to flush spans before the process exits.
func InitTracing(cfg TracingConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		setTracer(tp.Tracer(InstrumentationName))
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create tracing resource")
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exportOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		exportOpts = append(exportOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exportOpts...)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create stdout exporter")
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)

	otel.SetTracerProvider(tp)
	setTracer(tp.Tracer(InstrumentationName))

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return shrederrors.Wrap(err, shrederrors.ErrorTypeInternal, "shutdown tracer provider")
		}
		return nil
	}, nil
}

// sampler maps a rate to a root sampler; children follow their parent.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the tracer installed by the last InitTracing call.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

func setTracer(t trace.Tracer) {
	mu.Lock()
	tracer = t
	mu.Unlock()
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
