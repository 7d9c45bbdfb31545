// Package obs holds the Prometheus metrics shared across the HTTP surface.
package obs

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delinked_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delinked_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delinked_auth_attempts_total",
			Help: "Authentication attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers the metrics in the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, authAttemptsTotal)
}

// Handler returns the Prometheus exposition handler wrapped for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Instrument records request count and latency per route.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// CountAuthAttempt tracks an authentication outcome ("success",
// "invalid_signature", "stale_nonce", "missing_role", "error").
func CountAuthAttempt(outcome string) {
	authAttemptsTotal.WithLabelValues(outcome).Inc()
}
