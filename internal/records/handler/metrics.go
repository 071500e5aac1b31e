package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordchain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recordchain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordchain_ledger_appends_total",
		Help: "Ledger append attempts by result.",
	}, []string{"result"})

	ledgerBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recordchain_ledger_blocks",
		Help: "Number of blocks in the ledger, including genesis.",
	})

	integrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordchain_integrity_checks_total",
		Help: "Full-chain integrity checks by result.",
	}, []string{"result"})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recordchain_webhook_deliveries_total",
		Help: "Alert webhook delivery attempts by result.",
	}, []string{"result"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recordchain_upload_bytes",
		Help:    "Size of recorded uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
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

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordLedgerAppend records an append attempt.
func RecordLedgerAppend(success bool) {
	if success {
		ledgerAppendsTotal.WithLabelValues("success").Inc()
	} else {
		ledgerAppendsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordIntegrityCheck records the outcome of a full-chain verification.
func RecordIntegrityCheck(valid bool) {
	if valid {
		integrityChecksTotal.WithLabelValues("valid").Inc()
	} else {
		integrityChecksTotal.WithLabelValues("invalid").Inc()
	}
}

// RecordUploadSize observes the size of a recorded upload.
func RecordUploadSize(n int64) {
	uploadBytes.Observe(float64(n))
}

// SetLedgerBlocks sets the block count gauge.
func SetLedgerBlocks(n int) {
	ledgerBlocks.Set(float64(n))
}

// RecordWebhookDelivery records one alert delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		webhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		webhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
