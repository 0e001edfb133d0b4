package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms covering the two money-moving paths. Registered on
// the default registry and served via /metrics.
var (
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transfers_total",
		Help: "Total p2p transfer attempts by result",
	}, []string{"result"})

	TransferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_transfer_duration_seconds",
		Help:    "Transfer engine latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_settlements_total",
		Help: "Total deposit settlement attempts by outcome",
	}, []string{"outcome"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_settlement_duration_seconds",
		Help:    "Settlement engine latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	DepositsInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_deposits_initiated_total",
		Help: "Deposit intents created",
	})
)
