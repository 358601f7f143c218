package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "secwatch"

type Metrics struct {
	// HTTP traffic by route template
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Store queries issued while building the dashboard
	QueryDuration *prometheus.HistogramVec
	QueryFailures *prometheus.CounterVec

	// Operational log retention runs
	LogsPurged prometheus.Counter
}

// New registers all collectors on reg. A nil reg gets a private registry,
// so callers that do not export metrics can still record into them.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dashboard_query_duration_seconds",
			Help:      "Latency of individual dashboard store queries.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),

		QueryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_query_failures_total",
			Help:      "Dashboard store queries that returned an error.",
		}, []string{"operation"}),

		LogsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "system_logs_purged_total",
			Help:      "System log rows removed by retention cleanup.",
		}),
	}
}

// ObserveQuery records one store query. Safe on a nil receiver.
func (m *Metrics) ObserveQuery(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		m.QueryFailures.WithLabelValues(operation).Inc()
	}
}

// AddPurged counts rows deleted by log retention. Safe on a nil receiver.
func (m *Metrics) AddPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.LogsPurged.Add(float64(n))
}

// GinMiddleware records request count and latency keyed by the matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
