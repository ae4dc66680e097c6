package velox

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusConfig controls the Prometheus middleware.
type PrometheusConfig struct {
	// Registerer receives the collectors. Defaults to the global registry.
	Registerer prometheus.Registerer

	// SkipPaths lists request targets excluded from instrumentation.
	SkipPaths []string
}

type metricsSet struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	responseSize     *prometheus.HistogramVec
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	factory := promauto.With(reg)
	return &metricsSet{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "velox_requests_total",
			Help: "Total number of requests processed, by method, target and status.",
		}, []string{"method", "target", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "velox_request_duration_seconds",
			Help:    "Request processing latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "target"}),
		requestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "velox_requests_in_flight",
			Help: "Number of requests currently being processed.",
		}),
		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "velox_response_size_bytes",
			Help:    "Response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"method", "target"}),
	}
}

// Prometheus returns middleware that records request count, latency,
// in-flight gauge and response size on the default registry.
func Prometheus() Middleware {
	return PrometheusWithConfig(PrometheusConfig{})
}

// PrometheusWithConfig returns the Prometheus middleware with explicit
// settings. Metrics are exposed through the registry; serving them over
// an endpoint is left to the caller (see cmd/velox for an example).
func PrometheusWithConfig(cfg PrometheusConfig) Middleware {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	metrics := newMetricsSet(cfg.Registerer)

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if _, ok := skip[ctx.Path()]; ok {
				return next.Serve(ctx)
			}

			metrics.requestsInFlight.Inc()
			start := time.Now()

			err := next.Serve(ctx)

			elapsed := time.Since(start).Seconds()
			metrics.requestsInFlight.Dec()

			status := ctx.Status()
			if err != nil {
				status = 500
			}
			method := ctx.Method()
			target := ctx.Path()

			metrics.requestsTotal.WithLabelValues(method, target, strconv.Itoa(status)).Inc()
			metrics.requestDuration.WithLabelValues(method, target).Observe(elapsed)
			metrics.responseSize.WithLabelValues(method, target).Observe(float64(ctx.ResponseSize()))

			return err
		})
	}
}
