package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported at /metrics; labels keep cardinality fixed and small.
var (
	metricFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartweb_fetch_failures_total",
		Help: "Aggregation fetches that returned a non-2xx status or a malformed payload.",
	}, []string{"endpoint"})

	metricPartialDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chartweb_partial_day_downgrades_total",
		Help: "Per-day sub-fetches inside the week grouped-bar pipeline downgraded to zero counts.",
	})

	metricPipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartweb_pipeline_runs_total",
		Help: "Load pipeline executions by period.",
	}, []string{"period"})

	metricStaleDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chartweb_stale_results_dropped_total",
		Help: "Pipeline results discarded because a newer run superseded their selection.",
	})

	metricRefreshTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chartweb_refresh_ticks_total",
		Help: "Realtime refresher ticks processed.",
	})
)
