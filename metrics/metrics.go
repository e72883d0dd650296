// Package metrics exposes Prometheus instrumentation for extraction runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	StrategyAttempts *prometheus.CounterVec
	StrategyDuration *prometheus.HistogramVec
	CandidatesTotal  *prometheus.CounterVec
	DroppedTotal     *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec
	ConvergeActions  *prometheus.HistogramVec
	QueuedMediaTotal *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		StrategyAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrooper_strategy_attempts_total",
				Help: "Strategy attempts by outcome.",
			},
			[]string{"site", "strategy", "outcome"},
		),
		StrategyDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrooper_strategy_duration_seconds",
				Help:    "Wall time spent per strategy, retries included.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"site", "strategy"},
		),
		CandidatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrooper_candidates_total",
				Help: "Deduplicated media candidates returned to callers.",
			},
			[]string{"site"},
		),
		DroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrooper_candidates_dropped_total",
				Help: "Candidates dropped before reaching the caller.",
			},
			[]string{"site", "reason"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrooper_runs_total",
				Help: "Extraction runs by final status.",
			},
			[]string{"site", "status"},
		),
		ConvergeActions: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrooper_converge_actions",
				Help:    "Reveal actions taken before convergence.",
				Buckets: prometheus.LinearBuckets(0, 5, 11),
			},
			[]string{"site"},
		),
		QueuedMediaTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrooper_queued_media_total",
				Help: "Canonical URLs handed to the download queue.",
			},
			[]string{"site"},
		),
	}
}

// The helpers below are nil-safe so callers can run without metrics.

func (c *Collector) ObserveStrategy(site, strategy, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.StrategyAttempts.WithLabelValues(site, strategy, outcome).Inc()
	c.StrategyDuration.WithLabelValues(site, strategy).Observe(d.Seconds())
}

func (c *Collector) AddCandidates(site string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.CandidatesTotal.WithLabelValues(site).Add(float64(n))
}

func (c *Collector) AddDropped(site, reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.DroppedTotal.WithLabelValues(site, reason).Add(float64(n))
}

func (c *Collector) ObserveRun(site, status string) {
	if c == nil {
		return
	}
	c.RunsTotal.WithLabelValues(site, status).Inc()
}

func (c *Collector) ObserveConvergence(site string, actions int) {
	if c == nil {
		return
	}
	c.ConvergeActions.WithLabelValues(site).Observe(float64(actions))
}

func (c *Collector) AddQueued(site string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.QueuedMediaTotal.WithLabelValues(site).Add(float64(n))
}
