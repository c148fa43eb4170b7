// Package metrics exposes Prometheus collectors for the attribution pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Click outcomes. The visitor is redirected in every case; the label tells
// operators which branch was taken.
const (
	OutcomeRedirected   = "redirected"
	OutcomeNotFound     = "not_found"
	OutcomeExpired      = "expired"
	OutcomeStorageError = "storage_error"
)

type Metrics struct {
	Registry        *prometheus.Registry
	clicks          *prometheus.CounterVec
	conversions     *prometheus.CounterVec
	signups         *prometheus.CounterVec
	dashboardLoads  *prometheus.HistogramVec
	reconciledLinks prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "virion",
			Subsystem: "referral",
			Name:      "clicks_total",
			Help:      "Referral link clicks by outcome.",
		}, []string{"outcome"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "virion",
			Subsystem: "referral",
			Name:      "conversions_total",
			Help:      "Conversion reports by result.",
		}, []string{"result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "virion",
			Subsystem: "referral",
			Name:      "signups_total",
			Help:      "Referral signups by result.",
		}, []string{"result"}),
		dashboardLoads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "virion",
			Subsystem: "dashboard",
			Name:      "load_seconds",
			Help:      "Dashboard load latency by role and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role", "result"}),
		reconciledLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "virion",
			Subsystem: "reconciler",
			Name:      "links_corrected_total",
			Help:      "Links whose counters were raised by the reconciler.",
		}),
	}
	m.Registry.MustRegister(
		m.clicks,
		m.conversions,
		m.signups,
		m.dashboardLoads,
		m.reconciledLinks,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveClick(outcome string) {
	m.clicks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveConversion(result string) {
	m.conversions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSignup(result string) {
	m.signups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDashboardLoad(role, result string, seconds float64) {
	m.dashboardLoads.WithLabelValues(role, result).Observe(seconds)
}

func (m *Metrics) AddReconciled(n int64) {
	m.reconciledLinks.Add(float64(n))
}
