// Copyright 2025 Chainframe
//
// Prometheus metrics surface for the supervisor: ingestion lag,
// per-RPC-endpoint health, restarts, and a verification in-flight gauge.

package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the supervisor updates.
// VerificationQueue is registered but nothing in this repository sets it,
// so it stays at 0.
type Metrics struct {
	IngestionLag       prometheus.Gauge
	LatestIndexedBlock prometheus.Gauge
	LatestChainBlock   prometheus.Gauge
	RPCEndpointHealthy *prometheus.GaugeVec
	VerificationQueue  prometheus.Gauge
	RestartsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers the supervisor's metric collectors
// against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		IngestionLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evm_indexer",
			Name:      "ingestion_lag_blocks",
			Help:      "Difference between chain head and the last processed block.",
		}),
		LatestIndexedBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evm_indexer",
			Name:      "latest_indexed_block",
			Help:      "Highest block number fully persisted by the ingestion pipeline.",
		}),
		LatestChainBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evm_indexer",
			Name:      "latest_chain_block",
			Help:      "Highest block number observed from the RPC pool.",
		}),
		RPCEndpointHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evm_indexer",
			Name:      "rpc_endpoint_healthy",
			Help:      "1 if the RPC endpoint answered its last health check, 0 otherwise.",
		}, []string{"endpoint"}),
		VerificationQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evm_indexer",
			Name:      "verification_inflight",
			Help:      "Number of verification requests currently held by the per-address lock table.",
		}),
		RestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evm_indexer",
			Name:      "supervisor_restarts_total",
			Help:      "Count of component restarts issued by the supervisor, by component and reason.",
		}, []string{"component", "reason"}),
	}

	registry.MustRegister(
		m.IngestionLag,
		m.LatestIndexedBlock,
		m.LatestChainBlock,
		m.RPCEndpointHealthy,
		m.VerificationQueue,
		m.RestartsTotal,
	)
	return m
}
