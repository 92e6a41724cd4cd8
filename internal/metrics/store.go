package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store operation Prometheus metrics.
var (
	StoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchdex",
			Name:      "store_operations_total",
			Help:      "Total number of document-store operations",
		},
		[]string{"op", "status"},
	)

	StoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchdex",
			Name:      "store_operation_duration_seconds",
			Help:      "Document-store operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	StoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchdex",
			Name:      "store_retries_total",
			Help:      "Total number of retried store operations",
		},
		[]string{"action"},
	)

	RedactionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchdex",
			Name:      "redaction_cache_total",
			Help:      "Redaction cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var storeMetricsRegistered bool

// RegisterStoreMetrics registers Prometheus store metrics. Must be called once from main.
func RegisterStoreMetrics() {
	if storeMetricsRegistered {
		return
	}
	prometheus.MustRegister(StoreOpsTotal)
	prometheus.MustRegister(StoreOpDuration)
	prometheus.MustRegister(StoreRetriesTotal)
	prometheus.MustRegister(RedactionCacheTotal)
	storeMetricsRegistered = true
}

// ObserveStoreOp records one store operation outcome.
func ObserveStoreOp(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOpsTotal.WithLabelValues(op, status).Inc()
	StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
