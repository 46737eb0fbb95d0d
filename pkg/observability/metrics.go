package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DecisionsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns the service metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"code", "method", "path"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of latencies for HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method", "path"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wardgate_access_decisions_total",
				Help: "Access decisions by action and risk level.",
			},
			[]string{"action", "level"},
		),
	}
	prometheus.MustRegister(m.RequestsTotal, m.RequestDuration, m.DecisionsTotal)
	return m
}

// PrometheusMiddleware records request metrics for every route.
func PrometheusMiddleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.RequestsTotal.WithLabelValues(code, method, path).Inc()
		metrics.RequestDuration.WithLabelValues(code, method, path).Observe(time.Since(start).Seconds())
	}
}

// PrometheusHandler exposes the metrics endpoint.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
