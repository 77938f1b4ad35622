// Package monitoring exposes OpenTelemetry metrics through a Prometheus or OTLP exporter
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Custom attribute keys. HTTP metrics use the semconv keys.
const (
	attrBusinessAction    = "attrforms.business.action"
	attrBusinessOutcome   = "attrforms.business.outcome"
	attrExternalTarget    = "attrforms.external.target"
	attrExternalOperation = "attrforms.external.operation"
)

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

var (
	httpRequestsCounter   metric.Int64Counter
	httpRequestDuration   metric.Float64Histogram
	externalCallsCounter  metric.Int64Counter
	externalCallErrors    metric.Int64Counter
	externalCallDuration  metric.Float64Histogram
	businessEventsCounter metric.Int64Counter
	metricsHandler        http.Handler
	initialized           int32
	initOnce              sync.Once
	initErr               error
)

// Config holds the configuration for OpenTelemetry metrics
type Config struct {
	// ExporterType can be "prometheus", "otlp", or "none"
	ExporterType   string
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is the collector URL, https unless OTLPTLSInsecure is set
	OTLPEndpoint     string
	OTLPHeaders      map[string]string
	OTLPTLSInsecure  bool
	HistogramBuckets []float64
}

// DefaultConfig returns a Prometheus configuration for the service
func DefaultConfig(serviceName string) Config {
	return Config{
		ExporterType:     "prometheus",
		ServiceName:      serviceName,
		ServiceVersion:   "dev",
		HistogramBuckets: defaultBuckets,
	}
}

// Initialize sets up the meter provider and instruments. Only the first call has any effect.
func Initialize(config Config) error {
	initOnce.Do(func() {
		initErr = initialize(context.Background(), config)
		if initErr == nil {
			atomic.StoreInt32(&initialized, 1)
		}
	})
	return initErr
}

// IsInitialized reports whether metrics are being recorded
func IsInitialized() bool {
	return atomic.LoadInt32(&initialized) == 1
}

func initialize(ctx context.Context, config Config) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var reader sdkmetric.Reader
	switch config.ExporterType {
	case "prometheus", "":
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		slog.Info("Initialized OpenTelemetry metrics with Prometheus exporter", "service", config.ServiceName)

	case "otlp":
		if config.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP exporter")
		}
		endpointURL, err := url.Parse(config.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("invalid OTLP endpoint URL: %w", err)
		}
		if endpointURL.Scheme != "https" && !config.OTLPTLSInsecure {
			return fmt.Errorf("OTLP endpoint must use HTTPS (got: %s)", endpointURL.Scheme)
		}

		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpointURL.Host)}
		if config.OTLPTLSInsecure && endpointURL.Scheme == "http" {
			slog.Warn("Using insecure HTTP connection for OTLP endpoint", "endpoint", config.OTLPEndpoint)
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(config.OTLPHeaders) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(config.OTLPHeaders))
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
		metricsHandler = staticHandler(http.StatusOK, "# Metrics exported via OTLP\n")
		slog.Info("Initialized OpenTelemetry metrics with OTLP exporter",
			"service", config.ServiceName,
			"endpoint", config.OTLPEndpoint)

	case "none":
		reader = sdkmetric.NewManualReader()
		metricsHandler = staticHandler(http.StatusOK, "# Metrics disabled\n")
		slog.Info("OpenTelemetry metrics disabled", "service", config.ServiceName)

	default:
		return fmt.Errorf("unknown exporter type: %s (supported: prometheus, otlp, none)", config.ExporterType)
	}

	buckets := config.HistogramBuckets
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	histogramView := func(name string) sdkmetric.View {
		return sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: buckets}},
		)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(histogramView("http_request_duration_seconds")),
		sdkmetric.WithView(histogramView("external_call_duration_seconds")),
	)
	otel.SetMeterProvider(provider)
	meter := otel.Meter("attribute-forms")

	if httpRequestsCounter, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}
	if httpRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}
	if externalCallsCounter, err = meter.Int64Counter("external_calls_total",
		metric.WithDescription("Total number of external service calls"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create external_calls_total counter: %w", err)
	}
	if externalCallErrors, err = meter.Int64Counter("external_call_errors_total",
		metric.WithDescription("Total number of failed external service calls"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create external_call_errors_total counter: %w", err)
	}
	if externalCallDuration, err = meter.Float64Histogram("external_call_duration_seconds",
		metric.WithDescription("External service call duration in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create external_call_duration_seconds histogram: %w", err)
	}
	if businessEventsCounter, err = meter.Int64Counter("business_events_total",
		metric.WithDescription("Total number of business events"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create business_events_total counter: %w", err)
	}

	// Go runtime metrics (goroutines, GC, memory)
	if err := runtime.Start(
		runtime.WithMinimumReadMemStatsInterval(10*time.Second),
		runtime.WithMeterProvider(provider),
	); err != nil {
		return fmt.Errorf("failed to start runtime metrics: %w", err)
	}
	return nil
}

func staticHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// Handler returns the /metrics handler
func Handler() http.Handler {
	if !IsInitialized() || metricsHandler == nil {
		return staticHandler(http.StatusServiceUnavailable, "# Metrics not initialized\n")
	}
	return metricsHandler
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request count and latency labelled by the
// chi route pattern, so path parameters never become label values
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsInitialized() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routePattern(r)
		if rw.statusCode == http.StatusNotFound {
			route = "unknown"
		}
		ctx := context.Background()
		httpRequestsCounter.Add(ctx, 1, metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(rw.statusCode),
		))
		httpRequestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
		))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return strings.TrimSuffix(pattern, "/*")
		}
	}
	return "unknown"
}

// RecordExternalCall records a call to SMTP, a webhook, redis, mongo or the captcha service
func RecordExternalCall(target, operation string, duration time.Duration, err error) {
	if !IsInitialized() {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String(attrExternalTarget, target),
		attribute.String(attrExternalOperation, operation),
	)
	externalCallsCounter.Add(ctx, 1, attrs)
	externalCallDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		externalCallErrors.Add(ctx, 1, attrs)
	}
}

// RecordBusinessEvent records a domain event such as a submission outcome
func RecordBusinessEvent(action, outcome string) {
	if !IsInitialized() {
		return
	}
	businessEventsCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrBusinessAction, action),
		attribute.String(attrBusinessOutcome, outcome),
	))
}
