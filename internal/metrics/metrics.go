// Package metrics exposes Prometheus collectors for ingestion, resolution and scoring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestEventsTotal counts inbound events by source and outcome.
	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productradar",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Inbound signal events by source, status and drop reason",
		},
		[]string{"source", "status", "reason"},
	)

	// ResolutionsTotal counts identity resolutions by match kind.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productradar",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Identity resolutions by match kind (exact, alias, fuzzy, new)",
		},
		[]string{"match"},
	)

	// ResolverConflictsTotal counts uniqueness conflicts recovered by retry.
	ResolverConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "productradar",
			Subsystem: "resolver",
			Name:      "conflicts_total",
			Help:      "Name key conflicts recovered by re-resolving",
		},
	)

	ScoringRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productradar",
			Subsystem: "scoring",
			Name:      "runs_total",
			Help:      "Scoring runs by final status",
		},
		[]string{"status"},
	)

	ScoringRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "productradar",
			Subsystem: "scoring",
			Name:      "run_duration_seconds",
			Help:      "Duration of scoring runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
	)

	ProductsScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "productradar",
			Subsystem: "scoring",
			Name:      "products_scored_total",
			Help:      "Trend score snapshots written",
		},
	)

	// JobsSkippedTotal counts triggers rejected because the job was already running.
	JobsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "productradar",
			Subsystem: "jobs",
			Name:      "skipped_total",
			Help:      "Job triggers skipped because a previous execution was still active",
		},
		[]string{"job"},
	)

	// JobDuration tracks guarded job execution time.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "productradar",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of guarded job executions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"job", "status"},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "productradar",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected websocket stream clients",
		},
	)
)
