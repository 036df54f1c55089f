package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import outcome label values
const (
	OutcomeImported        = "imported"
	OutcomeAlreadyImported = "already_imported"
	OutcomeDenied          = "denied"
	OutcomeFailed          = "failed"
)

var (
	// FederationRounds counts completed federation rounds
	FederationRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "federation_rounds_total",
		Help: "Number of completed archive federation rounds",
	})

	// FederationServerErrors counts per-archive failures during rounds
	FederationServerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "federation_server_errors_total",
		Help: "Number of archive server failures during federation rounds",
	}, []string{"archive"})

	// FederationRoundDuration observes end-to-end round latency
	FederationRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "federation_round_duration_seconds",
		Help:    "End-to-end archive federation round latency",
		Buckets: prometheus.DefBuckets,
	})

	// StudiesMerged observes merged result set sizes
	StudiesMerged = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "federation_studies_merged",
		Help:    "Number of canonical studies merged per federation round",
		Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
	})

	// Imports counts import attempts by outcome
	Imports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "study_imports_total",
		Help: "Number of study import attempts by outcome",
	}, []string{"outcome"})
)
