package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/dispatch"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "eventwire").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for invocation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "eventwire",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	invocationErrors   *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	wsErrors           *prometheus.CounterVec
}

// globalMetrics is created on the first call to Prometheus.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		invocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocations_total",
			Help:        "Total number of handler invocations by final stage",
			ConstLabels: config.ConstLabels,
		}, []string{"category", "path", "stage"}),

		invocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocation_duration_seconds",
			Help:        "Handler invocation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"category", "path"}),

		invocationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "invocation_errors_total",
			Help:        "Total number of failed invocations by error category",
			ConstLabels: config.ConstLabels,
		}, []string{"category", "error_type"}),

		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fallbacks_total",
			Help:        "Total number of invocations that ran the fallback",
			ConstLabels: config.ConstLabels,
		}, []string{"path"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of active WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// Prometheus creates middleware that collects metrics for every handler
// invocation.
//
// Metrics collected:
//   - eventwire_invocations_total: invocations by category, path and stage
//   - eventwire_invocation_duration_seconds: invocation duration histogram
//   - eventwire_invocation_errors_total: failures by category and error type
//   - eventwire_fallbacks_total: fallback executions by path
//   - eventwire_active_sessions: open WebSocket sessions
//   - eventwire_websocket_errors_total: WebSocket errors by type
//
// The path label is "Owner@member". Metrics are registered once per
// process; later calls reuse them and ignore their options.
//
// Example:
//
//	engine := dispatch.New(doc, routes,
//	    dispatch.WithMiddleware(middleware.Prometheus()),
//	)
func Prometheus(opts ...MetricsOption) dispatch.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return dispatch.MiddlewareFunc(func(ctx context.Context, inv *dispatch.Invocation, next func(context.Context) *dispatch.Outcome) *dispatch.Outcome {
		path := inv.Path()
		start := time.Now()

		out := next(ctx)

		m.invocationDuration.WithLabelValues(inv.Category, path).Observe(time.Since(start).Seconds())

		stage := "unknown"
		if out != nil {
			stage = string(out.Stage)
			if out.Fallback {
				m.fallbacksTotal.WithLabelValues(path).Inc()
			}
			if err := outcomeError(out); err != nil {
				m.invocationErrors.WithLabelValues(inv.Category, categorizeError(err)).Inc()
			}
		}
		m.invocationsTotal.WithLabelValues(inv.Category, path, stage).Inc()

		return out
	})
}

// outcomeError returns the failure an outcome recorded, if any.
func outcomeError(out *dispatch.Outcome) error {
	if out.FallbackErr != nil {
		return out.FallbackErr
	}
	return out.Err
}

// categorizeError maps an error to a low-cardinality label.
func categorizeError(err error) string {
	if c := wireerrors.CategoryOf(err); c != "" {
		return string(c)
	}
	return "internal"
}

// RecordSessionOpen records a new WebSocket session.
func RecordSessionOpen() {
	if m := current(); m != nil {
		m.activeSessions.Inc()
	}
}

// RecordSessionClose records a closed WebSocket session.
func RecordSessionClose() {
	if m := current(); m != nil {
		m.activeSessions.Dec()
	}
}

// RecordWebSocketError records a WebSocket error.
func RecordWebSocketError(errorType string) {
	if m := current(); m != nil {
		m.wsErrors.WithLabelValues(errorType).Inc()
	}
}

func current() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}
