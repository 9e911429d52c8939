package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// DefaultServiceName is the default service name for observability when OTEL_SERVICE_NAME is not set.
	DefaultServiceName = "tutorplan"

	exportTimeout = 10 * time.Second
)

// Config holds observability configuration.
type Config struct {
	Enabled     bool   // Whether OpenTelemetry is enabled
	ServiceName string // Service name for logging (defaults to DefaultServiceName if empty)
}

func (c Config) serviceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// Providers bundles the three OpenTelemetry providers so binaries can set up
// and tear down telemetry in one place.
type Providers struct {
	Logger         *slog.Logger
	loggerProvider *log.LoggerProvider
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Setup initializes logging, tracing and metrics and installs the logger as
// the slog default. Call Shutdown on the result before exiting.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	lp, logger, err := InitLogger(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	tp, err := InitTracerProvider(ctx, cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to init tracer provider: %w", err), lp.Shutdown(ctx))
	}

	mp, err := InitMeterProvider(ctx, cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to init meter provider: %w", err), tp.Shutdown(ctx), lp.Shutdown(ctx))
	}

	slog.SetDefault(logger)

	return &Providers{
		Logger:         logger,
		loggerProvider: lp,
		tracerProvider: tp,
		meterProvider:  mp,
	}, nil
}

// Shutdown flushes and stops every provider. Meter and tracer go first so
// their final errors still reach the log exporter.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}
	if err := p.loggerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("logger provider: %w", err))
	}
	return errors.Join(errs...)
}

// parseOTLPHeaders parses OTEL_EXPORTER_OTLP_HEADERS ("k=v,k2=v2") and
// URL-decodes each value, so "Basic%20token" becomes "Basic token".
func parseOTLPHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}

	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		value, err := url.QueryUnescape(kv[1])
		if err != nil {
			value = kv[1]
		}
		headers[key] = value
	}
	return headers
}

// newResource merges the service name over the SDK default resource.
//
// Additional attributes can be set via OTEL_RESOURCE_ATTRIBUTES env var:
//
//	export OTEL_RESOURCE_ATTRIBUTES="service.version=1.0.0,deployment.environment=production"
func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	// Explicit attributes first; WithFromEnv lets OTEL_SERVICE_NAME override them.
	serviceResource, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
		resource.WithSchemaURL(semconv.SchemaURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service resource: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		serviceResource,
	)
	if err != nil {
		// A partial resource is still usable.
		if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
			return res, nil
		}
		return nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	return res, nil
}

// InitTracerProvider initializes an OTLP tracer provider over HTTP.
//
// Configuration via environment variables (standard OTEL env vars):
//   - OTEL_EXPORTER_OTLP_ENDPOINT: Full URL
//   - OTEL_EXPORTER_OTLP_HEADERS: Auth headers (e.g., Authorization=Basic <base64-token>)
//   - OTEL_RESOURCE_ATTRIBUTES: Resource attributes
func InitTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	res, err := newResource(ctx, cfg.serviceName())
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(exportTimeout)}
	if headers := parseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); headers != nil {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	traceExporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider, nil
}

// InitMeterProvider initializes an OTLP meter provider over HTTP.
// The planner service and otelhttp register their instruments on it.
func InitMeterProvider(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	res, err := newResource(ctx, cfg.serviceName())
	if err != nil {
		return nil, err
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithTimeout(exportTimeout)}
	if headers := parseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); headers != nil {
		opts = append(opts, otlpmetrichttp.WithHeaders(headers))
	}
	metricExporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)

	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// InitLogger initializes an OTLP log provider and returns a structured logger.
// When disabled, logs go to stdout as JSON.
func InitLogger(ctx context.Context, cfg Config) (*log.LoggerProvider, *slog.Logger, error) {
	if !cfg.Enabled {
		return log.NewLoggerProvider(), slog.New(slog.NewJSONHandler(os.Stdout, nil)), nil
	}

	res, err := newResource(ctx, cfg.serviceName())
	if err != nil {
		return nil, nil, err
	}

	opts := []otlploghttp.Option{otlploghttp.WithTimeout(exportTimeout)}
	if headers := parseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); headers != nil {
		opts = append(opts, otlploghttp.WithHeaders(headers))
	}
	logExporter, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	loggerProvider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(logExporter,
			log.WithExportTimeout(5*time.Second),
		)),
		log.WithResource(res),
	)

	logger := otelslog.NewLogger(cfg.serviceName(), otelslog.WithLoggerProvider(loggerProvider))

	return loggerProvider, logger, nil
}
