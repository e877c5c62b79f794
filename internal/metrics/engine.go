package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "feedex"

// Engine Prometheus metrics.
var (
	BatchCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_cycles_total",
			Help:      "Batch recompute cycles by outcome",
		},
		[]string{"outcome"}, // "ok" / "idle" / "error"
	)

	BatchCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_cycle_duration_seconds",
			Help:      "Batch recompute cycle duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	InteractionsFoldedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_folded_total",
			Help:      "Interactions folded into taste profiles",
		},
	)

	FeedsRecomputedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feeds_recomputed_total",
			Help:      "Feeds fully recomputed by the batch path",
		},
	)

	QuickUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quick_updates_total",
			Help:      "Quick feed updates by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	FeedEntriesInjectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_entries_injected_total",
			Help:      "Entries merged into feeds by quick updates",
		},
		[]string{"event"},
	)

	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Routed events by name and outcome",
		},
		[]string{"event", "outcome"},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers Prometheus engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(BatchCyclesTotal)
	prometheus.MustRegister(BatchCycleDuration)
	prometheus.MustRegister(InteractionsFoldedTotal)
	prometheus.MustRegister(FeedsRecomputedTotal)
	prometheus.MustRegister(QuickUpdatesTotal)
	prometheus.MustRegister(FeedEntriesInjectedTotal)
	prometheus.MustRegister(EventsConsumedTotal)
	engineMetricsRegistered = true
}

// Outcome maps an error to an "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
