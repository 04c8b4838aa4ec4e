// Package metrics exposes crawl counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shelfcrawl"

// Metrics holds all Prometheus metrics for a run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FetchAttempts  *prometheus.CounterVec
	FetchOutcomes  *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	PagesTotal     *prometheus.CounterVec
	ItemsTotal     *prometheus.CounterVec
	RecordsTotal   *prometheus.CounterVec
	RunAttempts    *prometheus.CounterVec
	DelaySeconds   prometheus.Counter
	CategoriesSeen prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by result (ok or a failure reason).",
		}, []string{"result"}),
		FetchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_outcomes_total",
			Help:      "Fetch outcomes after retries.",
		}, []string{"outcome"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of single fetch attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		PagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Listing pages by status (fetched, skipped).",
		}, []string{"status"}),
		ItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Item pages by status (fetched, skipped).",
		}, []string{"status"}),
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records offered to the store by result (accepted, duplicate).",
		}, []string{"result"}),
		RunAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_attempts_total",
			Help:      "Whole-run attempts by result.",
		}, []string{"result"}),
		DelaySeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delay_seconds_total",
			Help:      "Time spent in politeness delays.",
		}),
		CategoriesSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categories_total",
			Help:      "Categories handed to the pagination walker.",
		}),
	}
}

func (m *Metrics) IncFetchAttempt(result string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFetchOutcome(outcome string) {
	if m == nil {
		return
	}
	m.FetchOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
}

func (m *Metrics) IncPage(status string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncItem(status string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRecord(result string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRunAttempt(result string) {
	if m == nil {
		return
	}
	m.RunAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) AddDelay(seconds float64) {
	if m == nil {
		return
	}
	m.DelaySeconds.Add(seconds)
}

func (m *Metrics) IncCategory() {
	if m == nil {
		return
	}
	m.CategoriesSeen.Inc()
}
