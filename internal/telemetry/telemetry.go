// Package telemetry installs OpenTelemetry providers for the instruments
// recorded by the context engine. Without Init the global no-op providers
// stay in place.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for an exporter name Init does not know.
var ErrUnknownExporter = errors.New("unknown exporter")

// Config selects exporters.
type Config struct {
	ServiceName string
	// Traces is "none" or "stdout".
	Traces string
	// Metrics is "none", "stdout" or "prometheus".
	Metrics string
	// Writer receives stdout exporter output. Defaults to os.Stderr so
	// command output on stdout stays parseable.
	Writer io.Writer
}

// Telemetry holds the installed providers.
type Telemetry struct {
	shutdown       []func(context.Context) error
	metricsHandler http.Handler
}

// Init installs the configured providers as the otel globals.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rootpath"
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
	)

	t := &Telemetry{}
	switch cfg.Traces {
	case "", "none":
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tp := trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		t.shutdown = append(t.shutdown, tp.Shutdown)
	default:
		return nil, fmt.Errorf("traces: %w: %s", ErrUnknownExporter, cfg.Traces)
	}

	switch cfg.Metrics {
	case "", "none":
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
		if err != nil {
			t.Shutdown(ctx)
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		)
		otel.SetMeterProvider(mp)
		t.shutdown = append(t.shutdown, mp.Shutdown)
	case "prometheus":
		// A private registry keeps repeated Init calls from colliding in
		// the default one.
		registry := prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			t.Shutdown(ctx)
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		)
		otel.SetMeterProvider(mp)
		t.shutdown = append(t.shutdown, mp.Shutdown)
		t.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	default:
		t.Shutdown(ctx)
		return nil, fmt.Errorf("metrics: %w: %s", ErrUnknownExporter, cfg.Metrics)
	}
	return t, nil
}

// MetricsHandler serves the Prometheus exposition format, or is nil unless
// the prometheus exporter is installed.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops every installed provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
