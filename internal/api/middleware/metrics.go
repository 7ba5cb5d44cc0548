// Package middleware holds the gin middleware chain shared by every
// route: CORS, request decompression, connection tracking, and Prometheus
// metrics.
package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_gateway_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_gateway_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnectionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "copilot_gateway_active_connections",
			Help: "Number of currently active HTTP connections",
		},
	)

	requestsByProvider = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_gateway_requests_by_provider_total",
			Help: "Total upstream requests grouped by provider and model",
		},
		[]string{"provider", "model"},
	)

	apiErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_gateway_api_errors_total",
			Help: "Total number of API errors by internal error code",
		},
		[]string{"error_type", "provider"},
	)

	registerOnce sync.Once
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDurationSeconds,
			activeConnectionsGauge,
			requestsByProvider,
			apiErrorsTotal,
		)
	})
}

// PrometheusMiddleware records request counts, latencies, and per-provider
// routing for every endpoint except /metrics itself.
func PrometheusMiddleware() gin.HandlerFunc {
	registerMetrics()
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		path := normalizePath(c.Request.URL.Path)
		method := c.Request.Method
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		if provider, ok := c.Get("provider"); ok {
			model, _ := c.Get("model")
			providerStr, _ := provider.(string)
			modelStr, _ := model.(string)
			if providerStr != "" {
				requestsByProvider.WithLabelValues(providerStr, modelStr).Inc()
			}
		}
	}
}

// normalizePath folds the bare and /v1-prefixed spellings of each endpoint
// onto one label value so the metric cardinality stays fixed.
func normalizePath(path string) string {
	switch strings.TrimPrefix(path, "/v1") {
	case "/models", "/chat/completions", "/embeddings", "/usage",
		"/responses", "/messages", "/messages/count_tokens":
		return "/v1" + strings.TrimPrefix(path, "/v1")
	}
	switch path {
	case "/", "/healthz", "/metrics", "/token", "/auth/device-code", "/auth/poll", "/auth/token":
		return path
	}
	if len(path) > 50 {
		return path[:50]
	}
	return path
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	registerMetrics()
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAPIError counts one API error against its internal error code and
// the provider that served (or failed to serve) the request.
func RecordAPIError(errorType, provider string) {
	registerMetrics()
	apiErrorsTotal.WithLabelValues(errorType, provider).Inc()
}
