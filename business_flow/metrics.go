package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions partitioned by strategy and outcome (winner, none)
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_decisions_total",
			Help: "Total number of arbitration decisions",
		},
		[]string{"strategy", "outcome"},
	)

	decisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_decision_duration_seconds",
			Help:    "Arbitration latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Transition attempts partitioned by from, to and result (ok, invalid, legal_gate, error)
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_status_transitions_total",
			Help: "Total number of campaign status transition attempts",
		},
		[]string{"from", "to", "result"},
	)

	versionBumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_version_bumps_total",
			Help: "Total number of material edits that forked a new version",
		},
		[]string{"edit_kind"},
	)

	audienceSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nba_audience_size",
			Help: "Estimated audience size of the latest saved audience per campaign",
		},
		[]string{"campaign"},
	)
)
