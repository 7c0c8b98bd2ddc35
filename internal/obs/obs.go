// Package obs wires up this process's OpenTelemetry tracer and meter
// providers. Unlike a deployed service with a cloud telemetry backend,
// this process only ever exports locally: traces to stdout (or nowhere,
// when tracing isn't requested) and metrics to a Prometheus scrape
// endpoint (or to stdout, when Prometheus export isn't requested), so
// operators can point a local Prometheus at /metrics
// without any external dependency.
package obs

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	noop "go.opentelemetry.io/otel/trace/noop"
	"k8s.io/klog/v2"
)

// Config controls which exporters Init wires up.
type Config struct {
	// StdoutTrace enables a stdouttrace exporter, useful for local
	// debugging; when false, a no-op tracer provider is installed.
	StdoutTrace bool
	// PrometheusMetrics enables the Prometheus exporter, which
	// registers with the default Prometheus registry, meant to be
	// served at /metrics. When false, metrics go to a stdout exporter.
	PrometheusMetrics bool
}

// Shutdown flushes and tears down whatever providers Init installed.
type Shutdown func(context.Context) error

// Init installs global tracer and meter providers per cfg and returns
// a Meter for instrument creation plus a Shutdown to call before the
// process exits. With PrometheusMetrics set, metrics are gathered by
// the default Prometheus registry, which the caller's HTTP mux must
// serve at /metrics.
func Init(ctx context.Context, cfg Config) (metric.Meter, Shutdown, error) {
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		return err
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("symstat"),
			semconv.ServiceNamespaceKey.String("symstat"),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	if cfg.StdoutTrace {
		te, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(te),
			sdktrace.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
	} else {
		otel.SetTracerProvider(noop.NewTracerProvider())
	}

	var reader sdkmetric.Reader
	if cfg.PrometheusMetrics {
		promExporter, err := prometheus.New()
		if err != nil {
			return nil, nil, err
		}
		reader = promExporter
	} else {
		me, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, err
		}
		reader = sdkmetric.NewPeriodicReader(me)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	otel.SetMeterProvider(mp)

	klog.V(1).Infof("observability initialised: stdoutTrace=%t prometheusMetrics=%t", cfg.StdoutTrace, cfg.PrometheusMetrics)

	return mp.Meter("symstat"), shutdown, nil
}
