package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring the intent lifecycle
var (
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intents_created_total",
		Help: "The total number of created intents",
	}, []string{"kind", "application"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_settlements_total",
		Help: "Settlement attempts by kind and outcome",
	}, []string{"kind", "status"})

	CompensatingCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_compensating_cancellations_total",
		Help: "Confirmed intents cancelled after a failed settlement",
	})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intent_settlement_seconds",
		Help:    "Time taken to settle confirmed intents",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})
)
