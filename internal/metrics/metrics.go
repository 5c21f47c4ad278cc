// Package metrics exposes the pipeline's Prometheus instrumentation: parse
// outcomes per source kind, association results per stage, stage durations,
// and the size of the final catalog.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seiscat/internal/recparse"
)

// Metrics bundles every collector the pipeline reports to.
type Metrics struct {
	registry *prometheus.Registry

	parseLines    *prometheus.CounterVec
	matches       *prometheus.CounterVec
	unmatched     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	catalogSize   *prometheus.GaugeVec
}

// New builds a Metrics with its own registry, including the standard Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		parseLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seiscat",
			Name:      "parse_lines_total",
			Help:      "Parsed input lines by source kind and outcome.",
		}, []string{"kind", "status"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seiscat",
			Name:      "matches_total",
			Help:      "Committed association matches per stage.",
		}, []string{"stage"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seiscat",
			Name:      "unmatched_total",
			Help:      "Entities left unmatched per stage.",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seiscat",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		catalogSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "seiscat",
			Name:      "catalog_entities",
			Help:      "Entities in the assembled catalog by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.parseLines, m.matches, m.unmatched, m.stageDuration, m.catalogSize,
	)
	return m
}

// ObserveParse records one file's parse counters.
func (m *Metrics) ObserveParse(kind string, c recparse.Counts) {
	m.parseLines.WithLabelValues(kind, "ok").Add(float64(c.OK))
	m.parseLines.WithLabelValues(kind, "recovered").Add(float64(c.Recovered))
	m.parseLines.WithLabelValues(kind, "failed").Add(float64(c.Failed))
}

// ObserveStage records one stage's match outcome and duration.
func (m *Metrics) ObserveStage(stage string, matched, unmatched int, d time.Duration) {
	m.matches.WithLabelValues(stage).Add(float64(matched))
	m.unmatched.WithLabelValues(stage).Add(float64(unmatched))
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetCatalogSize records the final entity counts.
func (m *Metrics) SetCatalogSize(picks, origins, events int) {
	m.catalogSize.WithLabelValues("picks").Set(float64(picks))
	m.catalogSize.WithLabelValues("origins").Set(float64(origins))
	m.catalogSize.WithLabelValues("events").Set(float64(events))
}

// Handler returns the exposition handler for the run's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the run's registry for exposition and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
