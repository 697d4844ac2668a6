package performance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/fleet-performance/internal/activity"
)

// Cache outcomes reported on computations
const (
	outcomeHit    = "hit"
	outcomeMiss   = "miss"
	outcomeBypass = "bypass"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "performance_engine_stage_duration_seconds",
		Help:    "Duration of each reconstruction pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
	}, []string{"stage"})

	computationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "performance_report_computations_total",
		Help: "Total number of report requests by cache outcome",
	}, []string{"outcome"})

	droppedLogsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "performance_dropped_state_logs_total",
		Help: "State-log entries dropped during normalization",
	})

	syntheticLogsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "performance_synthetic_state_logs_total",
		Help: "Boundary entries inserted during normalization",
	})

	feedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "performance_feed_fetch_duration_seconds",
		Help:    "Duration of feed fetches",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"feed", "source", "result"})

	invalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "performance_invalidations_total",
		Help: "Feed version bumps",
	})
)

func observeStage(stage string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func recordComputation(outcome string) {
	computationsTotal.WithLabelValues(outcome).Inc()
}

func recordDiagnostics(d activity.Diagnostics) {
	droppedLogsTotal.Add(float64(d.DroppedLogs))
	syntheticLogsTotal.Add(float64(d.SyntheticLogs))
}

func recordFeedFetch(feed, source string, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	feedFetchDuration.WithLabelValues(feed, source, result).Observe(elapsed.Seconds())
}

func recordInvalidation() {
	invalidationsTotal.Inc()
}
