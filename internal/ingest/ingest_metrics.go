package ingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/beacon/internal/enrich"
)

// Metrics holds Prometheus metrics for the ingestion subsystem.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	ItemsFetched       *prometheus.CounterVec
	ItemsStored        prometheus.Counter
	AlertsCreated      *prometheus.CounterVec
	DuplicatesSkipped  prometheus.Counter
	SourceErrors       *prometheus.CounterVec
	EnrichmentOutcomes *prometheus.CounterVec
}

// NewMetrics registers and returns ingestion metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ingest_runs_total",
			Help: "Total ingestion runs by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_ingest_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}),
		ItemsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ingest_items_fetched_total",
			Help: "Items fetched per source after exact dedup.",
		}, []string{"source"}),
		ItemsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_ingest_items_stored_total",
			Help: "Raw items written to storage.",
		}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ingest_alerts_created_total",
			Help: "Alerts created by category.",
		}, []string{"category"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_ingest_duplicates_skipped_total",
			Help: "Items skipped as near-duplicates.",
		}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ingest_source_errors_total",
			Help: "Source fetch failures by source.",
		}, []string{"source"}),
		EnrichmentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ingest_enrichment_outcomes_total",
			Help: "Enrichment stage results by stage and outcome path.",
		}, []string{"stage", "outcome"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ItemsFetched,
		m.ItemsStored,
		m.AlertsCreated,
		m.DuplicatesSkipped,
		m.SourceErrors,
		m.EnrichmentOutcomes,
	)

	return m
}

func (m *Metrics) observeRun(stats *RunStats, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(stats.FinishedAt.Sub(stats.StartedAt).Seconds())
	if err == nil {
		m.ItemsStored.Add(float64(stats.ItemsStored))
	}
}

func (m *Metrics) observeOutcomes(res enrich.Result) {
	m.EnrichmentOutcomes.WithLabelValues("verify", string(res.Verification.Outcome)).Inc()
	m.EnrichmentOutcomes.WithLabelValues("classify", string(res.Classification.Outcome)).Inc()
	m.EnrichmentOutcomes.WithLabelValues("severity", string(res.Severity.Outcome)).Inc()
	m.EnrichmentOutcomes.WithLabelValues("summarize", string(res.Summary.Outcome)).Inc()
}
