// Package metrics exposes refinery counters and latencies on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the refinery collectors. A nil *Metrics is a no-op so
// callers never need to check.
type Metrics struct {
	reg *prometheus.Registry

	LeadsTotal         *prometheus.CounterVec
	PhaseDuration      *prometheus.HistogramVec
	DiscoveryFailures  *prometheus.CounterVec
	TaxonomyUnresolved *prometheus.CounterVec
	ClassifierTokens   *prometheus.CounterVec
	CostUSD            *prometheus.CounterVec
	IntentSignals      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		LeadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refinery_leads_total",
			Help: "Leads processed by final status",
		}, []string{"status"}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "refinery_phase_duration_seconds",
			Help:    "Duration of each enrichment phase",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"phase"}),
		DiscoveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refinery_discovery_unavailable_total",
			Help: "Discovery calls that fell back to empty evidence",
		}, []string{"provider"}),
		TaxonomyUnresolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refinery_taxonomy_unresolved_total",
			Help: "Classifier ids that were not in the taxonomy",
		}, []string{"kind"}),
		ClassifierTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refinery_classifier_tokens_total",
			Help: "Classifier tokens by direction",
		}, []string{"direction"}),
		CostUSD: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refinery_cost_usd_total",
			Help: "Estimated spend by provider",
		}, []string{"provider"}),
		IntentSignals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refinery_intent_signal_total",
			Help: "Completed records by intent signal",
		}, []string{"signal"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m != nil {
		m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// IncLead counts a lead reaching a final status.
func (m *Metrics) IncLead(status string) {
	if m != nil {
		m.LeadsTotal.WithLabelValues(status).Inc()
	}
}

// IncDiscoveryFailure counts a discovery fallback.
func (m *Metrics) IncDiscoveryFailure(provider string) {
	if m != nil {
		m.DiscoveryFailures.WithLabelValues(provider).Inc()
	}
}

// IncUnresolved counts an unknown taxonomy id.
func (m *Metrics) IncUnresolved(kind string) {
	if m != nil {
		m.TaxonomyUnresolved.WithLabelValues(kind).Inc()
	}
}

// AddTokens adds classifier token counts.
func (m *Metrics) AddTokens(input, output int) {
	if m != nil {
		m.ClassifierTokens.WithLabelValues("input").Add(float64(input))
		m.ClassifierTokens.WithLabelValues("output").Add(float64(output))
	}
}

// AddCost adds estimated spend for a provider.
func (m *Metrics) AddCost(provider string, usd float64) {
	if m != nil && usd > 0 {
		m.CostUSD.WithLabelValues(provider).Add(usd)
	}
}

// IncIntent counts a completed record's intent signal.
func (m *Metrics) IncIntent(signal string) {
	if m != nil {
		m.IntentSignals.WithLabelValues(signal).Inc()
	}
}
