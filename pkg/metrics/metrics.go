// Package metrics holds the Prometheus collectors shared by the
// coordinator and participant services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal counts coordinator decisions by outcome.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_2pc_transactions_total",
		Help: "Account-creation transactions by final decision.",
	}, []string{"decision"})

	// PrepareVotesTotal counts votes collected during the voting phase.
	// Transport failures and timeouts are counted as abort votes.
	PrepareVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_2pc_prepare_votes_total",
		Help: "Prepare votes collected by the coordinator.",
	}, []string{"vote"})

	// RPCDuration observes outbound coordinator RPC latency by phase.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "banking_2pc_rpc_duration_seconds",
		Help:    "Latency of outbound prepare/commit/abort calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	// ReconcileResolutionsTotal counts stale reservations resolved by the
	// participant reconciler.
	ReconcileResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banking_2pc_reconcile_resolutions_total",
		Help: "Stale pending reservations resolved via the coordinator outcome endpoint.",
	}, []string{"decision"})
)

// RegisterStoreGauges exposes committed/pending table sizes of a participant
// store as gauges.
func RegisterStoreGauges(committed, pending func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "banking_2pc_committed_accounts",
		Help: "Committed accounts held by this participant.",
	}, func() float64 { return float64(committed()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "banking_2pc_pending_reservations",
		Help: "Pending reservations held by this participant.",
	}, func() float64 { return float64(pending()) })
}
