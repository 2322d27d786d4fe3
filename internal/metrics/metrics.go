// Package metrics instruments the scan pipeline for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coinpulse/regimescan/internal/domain"
)

// Metrics holds the pipeline collectors. All collectors live on one
// registry so the HTTP surface can serve them without touching the
// global default.
type Metrics struct {
	Registry *prometheus.Registry

	cycleDuration  prometheus.Histogram
	cyclesTotal    *prometheus.CounterVec
	assetsScored   prometheus.Counter
	assetsExcluded prometheus.Counter
	fetchErrors    *prometheus.CounterVec
	regimeGauge    *prometheus.GaugeVec
	regimeChanges  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "regimescan",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one full scan cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regimescan",
			Name:      "cycles_total",
			Help:      "Completed and failed scan cycles.",
		}, []string{"outcome"}),
		assetsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regimescan",
			Name:      "assets_scored_total",
			Help:      "Assets that produced a scored entry.",
		}),
		assetsExcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regimescan",
			Name:      "assets_excluded_total",
			Help:      "Assets dropped from a cycle (no data or invalid plan).",
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regimescan",
			Name:      "fetch_errors_total",
			Help:      "Upstream fetch failures by kind.",
		}, []string{"kind"}),
		regimeGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "regimescan",
			Name:      "regime",
			Help:      "One-hot gauge of the active regime.",
		}, []string{"regime"}),
		regimeChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regimescan",
			Name:      "regime_changes_total",
			Help:      "Regime transitions observed between cycles.",
		}),
	}
	m.Registry.MustRegister(
		m.cycleDuration, m.cyclesTotal, m.assetsScored,
		m.assetsExcluded, m.fetchErrors, m.regimeGauge, m.regimeChanges,
	)
	return m
}

func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	m.cycleDuration.Observe(d.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AssetScored()   { m.assetsScored.Inc() }
func (m *Metrics) AssetExcluded() { m.assetsExcluded.Inc() }

func (m *Metrics) FetchError(kind string) {
	m.fetchErrors.WithLabelValues(kind).Inc()
}

// SetRegime flips the one-hot regime gauge.
func (m *Metrics) SetRegime(active domain.Regime, changed bool) {
	for _, r := range domain.AllRegimes() {
		v := 0.0
		if r == active {
			v = 1.0
		}
		m.regimeGauge.WithLabelValues(r.String()).Set(v)
	}
	if changed {
		m.regimeChanges.Inc()
	}
}
