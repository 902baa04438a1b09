package observe

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry meter provider.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "voxwake".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// Registerer receives the exporter's collector. Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// InitProvider installs a meter provider backed by a Prometheus exporter as
// the global OTel provider and returns metrics built on it, along with a
// shutdown function to defer from main.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Metrics, func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "voxwake"
	}

	res, err := resource.Merge(
		resource.Default(),
		// schemaless: Default() carries its own schema URL
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	var opts []promexporter.Option
	if cfg.Registerer != nil {
		opts = append(opts, promexporter.WithRegisterer(cfg.Registerer))
	}
	promExp, err := promexporter.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	metrics, err := NewMetrics(mp)
	if err != nil {
		return nil, nil, errors.Join(err, mp.Shutdown(ctx))
	}
	return metrics, mp.Shutdown, nil
}

// Handler serves the Prometheus scrape endpoint for gatherer. A nil gatherer
// uses prometheus.DefaultGatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
