package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/feichai0017/ingest-triage/internal/models"
)

var (
	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "documents_total",
			Help:      "Documents by terminal state.",
		},
		[]string{"state"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"stage"},
	)

	categoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "categories_total",
			Help:      "Classified documents by category.",
		},
		[]string{"category"},
	)
)

func observeStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func recordOutcome(state models.TerminalState) {
	documentsTotal.WithLabelValues(string(state)).Inc()
}

func recordCategory(cat models.Category) {
	categoriesTotal.WithLabelValues(string(cat)).Inc()
}
