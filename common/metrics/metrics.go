package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RpcRequestDuration measures outgoing HTTP requests to RPC endpoints.
	RpcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_rpc_request_duration_seconds",
		Help:    "Duration of HTTP requests to RPC endpoints.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
	}, []string{"host"})

	// RpcRequestTotal counts outgoing HTTP requests by status code, "error" if no response.
	RpcRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_rpc_requests_total",
		Help: "Total number of HTTP requests to RPC endpoints.",
	}, []string{"host", "status_code"})

	// RpcRetriesTotal counts retries on the same endpoint after throttling.
	RpcRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_rpc_retries_total",
		Help: "Total number of retries on the same endpoint.",
	}, []string{"host"})

	// RpcRotationsTotal counts endpoint rotations per chain.
	RpcRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_rpc_rotations_total",
		Help: "Total number of endpoint rotations.",
	}, []string{"chain"})

	// RpcErrorsTotal counts classified errors per chain and kind.
	RpcErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_rpc_errors_total",
		Help: "Total number of classified RPC errors.",
	}, []string{"chain", "kind"})

	// BatchSize observes the number of distinct requests per dispatched batch.
	BatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_rpc_batch_size",
		Help:    "Number of requests in dispatched batches.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"chain"})

	// CacheLookupsTotal counts call cache and log fetcher lookups by result: hit, miss or shared.
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_rpc_cache_lookups_total",
		Help: "Total number of cache lookups.",
	}, []string{"cache", "result"})
)
