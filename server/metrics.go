package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"panelcatalog/pipeline"
)

// Metrics exposes pass counters for scraping. Observability of merges,
// reclassifications and removals is part of the engine contract, not
// incidental logging.
type Metrics struct {
	passesTotal       *prometheus.CounterVec
	recordsMerged     prometheus.Counter
	recordsRemoved    prometheus.Counter
	reclassifications prometheus.Counter
	treeOps           *prometheus.CounterVec
	recordsReindexed  prometheus.Counter
	failuresTotal     prometheus.Counter
}

// NewMetrics creates the collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "passes_total",
			Help:      "Reconciliation passes run, by mode and status",
		}, []string{"mode", "status"}),
		recordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "records_merged_total",
			Help:      "Duplicate groups merged",
		}),
		recordsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "records_removed_total",
			Help:      "Losing duplicate records removed",
		}),
		reclassifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "reclassifications_total",
			Help:      "Panels moved to a new category",
		}),
		treeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "tree_ops_total",
			Help:      "Category tree mutations, by operation",
		}, []string{"op"}),
		recordsReindexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "records_reindexed_total",
			Help:      "Panels whose derived search fields were rewritten",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "failures_total",
			Help:      "Records or pages that failed and were skipped",
		}),
	}
}

// Register registers all collectors.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.passesTotal,
		m.recordsMerged,
		m.recordsRemoved,
		m.reclassifications,
		m.treeOps,
		m.recordsReindexed,
		m.failuresTotal,
	)
}

// ObservePass records one completed pass diff. Dry-run passes count in
// passes_total but contribute nothing to the record counters: no records
// changed.
func (m *Metrics) ObservePass(report *pipeline.DiffReport, err error) {
	status := "ok"
	if err != nil || report.FailureCount() > 0 {
		status = "failed"
	}
	m.passesTotal.WithLabelValues(string(report.Mode), status).Inc()

	if report.Mode != pipeline.ModeApply {
		return
	}

	m.recordsMerged.Add(float64(len(report.Merges)))
	m.recordsRemoved.Add(float64(len(report.Removed)))
	m.reclassifications.Add(float64(len(report.Reclassifications)))
	for _, op := range report.TreeOps {
		m.treeOps.WithLabelValues(op.Op).Inc()
	}
	if report.Reindex != nil {
		m.recordsReindexed.Add(float64(report.Reindex.Reindexed))
	}
	m.failuresTotal.Add(float64(report.FailureCount()))
}
