// Package metrics provides Prometheus metrics for the Aster service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolutions by entity type and pipeline outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "resolution",
			Name:      "total",
			Help:      "Total number of resolutions by entity type and outcome",
		},
		[]string{"entity_type", "outcome"},
	)

	// ResolutionDuration tracks end-to-end resolution duration in seconds
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aster",
			Subsystem: "resolution",
			Name:      "duration_seconds",
			Help:      "Duration of resolutions in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"entity_type"},
	)

	// FuzzyMatchScore tracks the similarity score of accepted fuzzy matches
	FuzzyMatchScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aster",
			Subsystem: "matching",
			Name:      "fuzzy_score",
			Help:      "Similarity score (0-100) of accepted fuzzy matches",
			Buckets:   []float64{80, 82.5, 85, 87.5, 90, 92.5, 95, 97.5, 100},
		},
		[]string{"entity_type"},
	)

	// CacheHitsTotal tracks match cache hits by index
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of match cache hits by index",
		},
		[]string{"index"},
	)

	// ReconcileRunsTotal tracks reconciliation runs
	ReconcileRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs",
		},
	)

	// ReconcileMappingsTotal tracks mappings scanned by reconciliation, by result
	ReconcileMappingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "reconcile",
			Name:      "mappings_total",
			Help:      "Total number of mappings scanned by reconciliation, by result",
		},
		[]string{"result"},
	)

	// MergeCandidatesTotal tracks merge candidates recorded
	MergeCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "reconcile",
			Name:      "merge_candidates_total",
			Help:      "Total number of merge candidates recorded",
		},
		[]string{"entity_type"},
	)

	// KafkaEventsPublished tracks resolution events published to Kafka
	KafkaEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Total number of events published to Kafka",
		},
		[]string{"event_type", "status"},
	)
)

// RecordResolution records a completed resolution.
func RecordResolution(entityType, outcome string, durationSeconds float64) {
	ResolutionsTotal.WithLabelValues(entityType, outcome).Inc()
	ResolutionDuration.WithLabelValues(entityType).Observe(durationSeconds)
}

// RecordFuzzyScore records the score of an accepted fuzzy match.
func RecordFuzzyScore(entityType string, score float64) {
	FuzzyMatchScore.WithLabelValues(entityType).Observe(score)
}

// RecordCacheHit records a match cache hit for the given index.
func RecordCacheHit(index string) {
	CacheHitsTotal.WithLabelValues(index).Inc()
}
