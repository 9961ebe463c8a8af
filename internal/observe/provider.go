package observe

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// defaultServiceName is reported when ProviderConfig.ServiceName is empty.
const defaultServiceName = "fluentforge"

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "fluentforge".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry. When empty
	// or "dev", the main module version from the build info is used.
	ServiceVersion string

	// InstanceID identifies this process among replicas. Default: a random UUID.
	InstanceID string

	// Registerer receives the Prometheus collector that backs /metrics.
	// Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// TraceExporter is an optional span exporter. When nil, spans are
	// recorded but not exported.
	TraceExporter sdktrace.SpanExporter
}

func (c *ProviderConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.ServiceVersion == "" || c.ServiceVersion == "dev" {
		c.ServiceVersion = buildVersion(c.ServiceVersion)
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
}

// buildVersion returns the main module version recorded by the Go
// toolchain, or fallback for "(devel)" builds and tests.
func buildVersion(fallback string) string {
	if fallback == "" {
		fallback = "dev"
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return fallback
	}
	return info.Main.Version
}

// newResource describes this process. The service attributes carry no
// schema URL so they merge with the SDK detector output.
func newResource(ctx context.Context, cfg ProviderConfig) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.ServiceInstanceID(cfg.InstanceID),
		),
	)
}

// InitProvider initialises the OTel SDK with the given config and registers
// the resulting providers as the global ones:
//
//   - a [sdkmetric.MeterProvider] read by a Prometheus exporter, so the
//     counters and histograms of [Metrics] are scraped via /metrics;
//   - a [sdktrace.TracerProvider] batching into the configured exporter.
//
// The returned shutdown flushes and closes both. Call it in a defer from
// main().
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	cfg.applyDefaults()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New(promexporter.WithRegisterer(cfg.Registerer))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}
