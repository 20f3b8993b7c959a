// Package metrics declares infosweep's Prometheus metrics, grounded on
// cuemby-warren's pkg/metrics/metrics.go package-level var + init()
// registration idiom.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "infosweep_queue_depth",
			Help: "Current depth of an in-process queue by name",
		},
		[]string{"queue"},
	)

	EventsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infosweep_events_fetched_total",
			Help: "Total number of events fetched by source",
		},
		[]string{"source"},
	)

	EventsMatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infosweep_events_matched_total",
			Help: "Total number of events that matched at least one rule, by source",
		},
		[]string{"source"},
	)

	EventsBlacklistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infosweep_events_blacklisted_total",
			Help: "Total number of events discarded by the blacklist rule, by source",
		},
		[]string{"source"},
	)

	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "infosweep_source_fetch_duration_seconds",
			Help:    "Time taken to fetch and realize one source poll cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "infosweep_match_duration_seconds",
			Help:    "Time taken to run the rule engine against one event",
			Buckets: prometheus.DefBuckets,
		},
	)

	SinkPersistDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "infosweep_sink_persist_duration_seconds",
			Help:    "Time taken to persist one processed event transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	SinkPersistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "infosweep_sink_persist_failures_total",
			Help: "Total number of processed events dropped due to persist failure",
		},
	)

	RetentionRowsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "infosweep_retention_rows_deleted_total",
			Help: "Total number of index_cache rows deleted by the retention job",
		},
	)

	MatcherState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "infosweep_matcher_state",
			Help: "Current matcher state (0=idle 1=running 2=draining 3=terminated)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueueDepth,
		EventsFetchedTotal,
		EventsMatchedTotal,
		EventsBlacklistedTotal,
		SourceFetchDuration,
		MatchDuration,
		SinkPersistDuration,
		SinkPersistFailuresTotal,
		RetentionRowsDeletedTotal,
		MatcherState,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
