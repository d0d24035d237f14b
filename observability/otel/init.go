package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	defaultEndpoint       = "localhost:4318"
	defaultMetricInterval = 15 * time.Second
)

var (
	errServiceName = errors.New("otel: service name required")
	errSampleRatio = errors.New("otel: sample ratio must be within [0, 1]")
)

// Config describes the exporters for one portald process.
type Config struct {
	ServiceName string
	Environment string
	// Endpoint is host:port or an http(s) URL. An http:// URL implies Insecure.
	Endpoint string
	Insecure bool
	Headers  map[string]string
	// Attributes are stamped on the resource, e.g. the portal's asset symbols.
	Attributes map[string]string
	// SampleRatio applies to root spans; zero means sample everything.
	SampleRatio    float64
	MetricInterval time.Duration
	Metrics        bool
	Traces         bool
}

func (c *Config) normalize() error {
	c.ServiceName = strings.TrimSpace(c.ServiceName)
	if c.ServiceName == "" {
		return errServiceName
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errSampleRatio
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = defaultMetricInterval
	}
	host, insecure, err := splitEndpoint(c.Endpoint)
	if err != nil {
		return err
	}
	c.Endpoint = host
	c.Insecure = c.Insecure || insecure
	return nil
}

// splitEndpoint reduces an endpoint to the host:port form the OTLP/HTTP
// exporters expect.
func splitEndpoint(raw string) (string, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultEndpoint, false, nil
	}
	if !strings.Contains(trimmed, "://") {
		return strings.TrimRight(trimmed, "/"), false, nil
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", false, fmt.Errorf("otel: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("otel: endpoint %q has no host", raw)
	}
	switch u.Scheme {
	case "http":
		return u.Host, true, nil
	case "https":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("otel: unsupported endpoint scheme %q", u.Scheme)
	}
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}
	keys := make([]string, 0, len(cfg.Attributes))
	for k := range cfg.Attributes {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(strings.TrimSpace(k), cfg.Attributes[k]))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// Init installs the global trace and meter providers and the W3C propagators.
// The returned function flushes and stops every exporter that was started.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	res, err := buildResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("otel: build resource: %w", err)
	}

	var shutdownFns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var shutdownErr error
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			if err := shutdownFns[i](ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
		return shutdownErr
	}

	if cfg.Traces {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otel: trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
		)
		otel.SetTracerProvider(tp)
		shutdownFns = append(shutdownFns, tp.Shutdown)
	}

	if cfg.Metrics {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("otel: metric exporter: %w", err)
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		)
		otel.SetMeterProvider(provider)
		shutdownFns = append(shutdownFns, provider.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return shutdown, nil
}

// ParseHeaders reads OTEL_EXPORTER_OTLP_HEADERS syntax: comma-separated
// key=value pairs with URL-encoded values. Malformed pairs are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		headers[key] = value
	}
	return headers
}
