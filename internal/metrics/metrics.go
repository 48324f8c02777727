package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExportRequests counts export requests by outcome (ok, invalid, empty, failed)
	ExportRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simpleweb3_export_requests_total",
			Help: "Total number of validator export requests",
		},
		[]string{"outcome"},
	)

	// ExportRows tracks rows returned by the warehouse
	ExportRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "simpleweb3_export_rows_total",
			Help: "Total number of rows exported as CSV",
		},
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simpleweb3_export_duration_seconds",
			Help:    "Warehouse query plus CSV build time in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// RPCCallsTotal tracks RPC calls per chain, method and outcome
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simpleweb3_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "method", "outcome"},
	)

	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simpleweb3_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// FeeCacheHits counts fee snapshot lookups by result (hit, miss)
	FeeCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simpleweb3_fee_cache_lookups_total",
			Help: "Fee snapshot cache lookups",
		},
		[]string{"result"},
	)
)

// ObserveRPC records one RPC call started at start.
func ObserveRPC(chain, method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RPCCallsTotal.WithLabelValues(chain, method, outcome).Inc()
	RPCLatency.WithLabelValues(chain, method).Observe(time.Since(start).Seconds())
}
