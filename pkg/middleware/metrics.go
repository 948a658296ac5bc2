package middleware

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/reconcile"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vdiff").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for render duration.
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
		Namespace: "vdiff",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the collectors registered by Prometheus().
type Collector struct {
	rendersTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	renderErrors   *prometheus.CounterVec
	mutationsTotal *prometheus.CounterVec
	activeMounts   prometheus.Gauge
	watchers       prometheus.Gauge
	framesSent     *prometheus.CounterVec
	wsErrors       *prometheus.CounterVec
}

// globalMetrics is created by the first call to Prometheus(); later calls
// share it so one registry never sees duplicate collectors.
var (
	globalMetrics   *Collector
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *Collector {
	factory := promauto.With(config.Registry)

	return &Collector{
		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of mount renders",
			ConstLabels: config.ConstLabels,
		}, []string{"mount", "status"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Render (reconcile pass) duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mount"}),

		renderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_errors_total",
			Help:        "Total number of failed renders",
			ConstLabels: config.ConstLabels,
		}, []string{"mount", "error_type"}),

		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total sink mutations emitted by op",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		activeMounts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_mounts",
			Help:        "Number of live mounts",
			ConstLabels: config.ConstLabels,
		}),

		watchers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watchers",
			Help:        "Number of connected WebSocket watchers",
			ConstLabels: config.ConstLabels,
		}),

		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Total protocol frames sent to watchers by frame type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// Prometheus creates mount middleware that collects render metrics.
//
// Metrics collected:
//   - vdiff_renders_total: renders by mount and status
//   - vdiff_render_duration_seconds: render duration by mount
//   - vdiff_render_errors_total: failed renders by mount and error type
//   - vdiff_mutations_total: emitted mutations by op
//   - vdiff_active_mounts, vdiff_watchers, vdiff_frames_sent_total,
//     vdiff_websocket_errors_total: fed by the Record functions
//
// Example:
//
//	m := reconcile.NewMount(r, nil,
//	    reconcile.WithName("todo"),
//	    reconcile.WithMiddleware(middleware.Prometheus()),
//	)
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) reconcile.Middleware {
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

	return reconcile.MiddlewareFunc(func(c *reconcile.Cycle, next func() error) error {
		start := time.Now()
		err := next()
		m.renderDuration.WithLabelValues(c.Mount).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.renderErrors.WithLabelValues(c.Mount, categorizeError(err)).Inc()
		}
		m.rendersTotal.WithLabelValues(c.Mount, status).Inc()

		for _, op := range reconcile.Ops {
			if n := c.Stats.Count(op); n > 0 {
				m.mutationsTotal.WithLabelValues(op.String()).Add(float64(n))
			}
		}
		return err
	})
}

// categorizeError maps an error to a low-cardinality label.
func categorizeError(err error) string {
	switch errors.CodeOf(err) {
	case "E001":
		return "duplicate_key"
	case "E002":
		return "stale_handle"
	case "E003":
		return "unknown_kind"
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case stderrors.Is(err, reconcile.ErrInvariantViolation):
		return "invariant"
	default:
		return "sink"
	}
}

// RecordMountCreate records a new mount.
func RecordMountCreate() {
	if m := GetMetrics(); m != nil {
		m.activeMounts.Inc()
	}
}

// RecordMountDestroy records a dropped mount.
func RecordMountDestroy() {
	if m := GetMetrics(); m != nil {
		m.activeMounts.Dec()
	}
}

// RecordWatcherConnect records a watcher attaching to a mount.
func RecordWatcherConnect() {
	if m := GetMetrics(); m != nil {
		m.watchers.Inc()
	}
}

// RecordWatcherDisconnect records a watcher going away.
func RecordWatcherDisconnect() {
	if m := GetMetrics(); m != nil {
		m.watchers.Dec()
	}
}

// RecordFrameSent records one frame written to a watcher.
func RecordFrameSent(frameType string) {
	if m := GetMetrics(); m != nil {
		m.framesSent.WithLabelValues(frameType).Inc()
	}
}

// RecordWebSocketError records a WebSocket error.
func RecordWebSocketError(errorType string) {
	if m := GetMetrics(); m != nil {
		m.wsErrors.WithLabelValues(errorType).Inc()
	}
}

// GetMetrics returns the collectors, or nil before Prometheus() is called.
func GetMetrics() *Collector {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}
