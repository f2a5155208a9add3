// Package metrics 导入流水线的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
)

// ImportMetrics 导入运行指标
type ImportMetrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	sheetsTotal      *prometheus.CounterVec
	recordsTotal     *prometheus.CounterVec
	correctionsTotal *prometheus.CounterVec
	issuesTotal      *prometheus.CounterVec
	quality          prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	capability       *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewImportMetrics 创建并注册指标
func NewImportMetrics(registry *prometheus.Registry) (*ImportMetrics, error) {
	m := &ImportMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry 指标注册表
func (m *ImportMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ImportMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sldimport_runs_total",
			Help: "Total number of import runs by outcome",
		},
		[]string{"status"},
	)

	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sldimport_run_duration_seconds",
			Help:    "Wall time of a complete import run",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
	)

	m.sheetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sldimport_sheets_total",
			Help: "Total number of sheets by status and classified type",
		},
		[]string{"status", "sheet_type"},
	)

	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sldimport_records_total",
			Help: "Total number of records by entity and final state",
		},
		[]string{"entity", "state"},
	)

	m.correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sldimport_corrections_total",
			Help: "Total number of automatic corrections by reason",
		},
		[]string{"reason"},
	)

	m.issuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sldimport_issues_total",
			Help: "Total number of validation issues by severity and kind",
		},
		[]string{"severity", "kind"},
	)

	m.quality = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sldimport_last_quality_score",
			Help: "Aggregate quality score of the most recent run",
		},
	)

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sldimport_similarity_cache_lookups_total",
			Help: "Similarity cache lookups by result",
		},
		[]string{"result"},
	)

	m.capability = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sldimport_capability_available",
			Help: "Whether an optional capability stayed available during the last run (1/0)",
		},
		[]string{"capability"},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal, m.runDuration, m.sheetsTotal, m.recordsTotal, m.correctionsTotal,
		m.issuesTotal, m.quality, m.cacheLookups, m.capability,
	}
}

// Describe implements prometheus.Collector
func (m *ImportMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *ImportMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// ObserveRun 记录一次完整运行
func (m *ImportMetrics) ObserveRun(report *model.ProcessingReport, d time.Duration, cache provenance.CacheStats) {
	if m == nil || report == nil {
		return
	}
	status := "completed"
	if report.Cancelled {
		status = "cancelled"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())

	for _, sh := range report.Sheets {
		sheetType := string(model.SheetTypeUnknown)
		if sh.Classification != nil {
			sheetType = string(sh.Classification.Type)
		}
		m.sheetsTotal.WithLabelValues(string(sh.Status), sheetType).Inc()
	}
	for _, rec := range report.Records() {
		m.recordsTotal.WithLabelValues(string(rec.Entity), string(rec.State)).Inc()
	}
	for _, c := range report.Corrections {
		m.correctionsTotal.WithLabelValues(string(c.Reason)).Inc()
	}
	for _, is := range report.Issues {
		m.issuesTotal.WithLabelValues(string(is.Severity), string(is.Kind)).Inc()
	}
	m.quality.Set(report.Quality)

	m.cacheLookups.WithLabelValues("hit").Add(float64(cache.Hits))
	m.cacheLookups.WithLabelValues("miss").Add(float64(cache.Misses))

	for name, up := range report.Capabilities {
		v := 0.0
		if up {
			v = 1
		}
		m.capability.WithLabelValues(name).Set(v)
	}
}

// ObserveFailure 记录未能开始的运行
func (m *ImportMetrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues("failed").Inc()
}
