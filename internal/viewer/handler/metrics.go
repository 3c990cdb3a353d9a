package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
)

var (
	viewerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	viewerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "viewer_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	viewerAggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_aggregations_total",
		Help: "Total provenance aggregations by result.",
	}, []string{"result"})

	viewerHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_ledger_health_checks_total",
		Help: "Total ledger reachability probes by result.",
	}, []string{"result"})

	viewerLedgerUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_ledger_up",
		Help: "1 when the ledger endpoint is reachable, 0 otherwise.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		viewerRequestsTotal.WithLabelValues(method, path, status).Inc()
		viewerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAggregation records the outcome of one provenance aggregation.
func RecordAggregation(err error) {
	viewerAggregationsTotal.WithLabelValues(ledger.Result(err)).Inc()
}

// RecordHealthCheck records a ledger reachability probe result.
func RecordHealthCheck(success bool) {
	if success {
		viewerHealthChecksTotal.WithLabelValues("success").Inc()
	} else {
		viewerHealthChecksTotal.WithLabelValues("failure").Inc()
	}
}

// SetLedgerUp sets the ledger reachability gauge.
func SetLedgerUp(up bool) {
	if up {
		viewerLedgerUp.Set(1)
	} else {
		viewerLedgerUp.Set(0)
	}
}
