package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling metrics
	EventsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_observed_total",
			Help: "Total number of events fetched from the ledger",
		},
		[]string{"kind"},
	)

	EventsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_persisted_total",
			Help: "Total number of events applied to the database",
		},
		[]string{"kind"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_failed_total",
			Help: "Total number of events that failed processing",
		},
		[]string{"kind", "reason"},
	)

	SourceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_source_errors_total",
			Help: "Total number of failed ledger source calls",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_cycle_duration_seconds",
			Help:    "Duration of one full polling cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Analytics metrics
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexer_recompute_duration_seconds",
			Help:    "Duration of one analytics recompute in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LastRecompute = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_last_recompute_timestamp_seconds",
			Help: "Unix time of the last successful analytics recompute",
		},
	)

	LastBlockSeen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_last_block_seen",
			Help: "Highest block number observed per event kind",
		},
		[]string{"kind"},
	)

	ContractImplementation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_contract_implementation_info",
			Help: "Most recently observed contract implementation, value is always 1",
		},
		[]string{"implementation"},
	)
)
