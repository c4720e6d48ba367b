// Package observability provides Prometheus metrics for the trading agent.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onchain_trade_agent"

// Metrics holds the agent's Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram

	// Decision metrics
	Decisions     *prometheus.CounterVec
	RiskOverrides prometheus.Counter
	Executions    *prometheus.CounterVec

	// Social metrics
	SocialPosts *prometheus.CounterVec

	// Portfolio metrics
	PortfolioValueUSD prometheus.Gauge
	OpenPositions     prometheus.Gauge
	EthBalance        prometheus.Gauge
	LastCycleSuccess  prometheus.Gauge
}

// NewMetrics registers every metric on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of trading cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Trading cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "total",
			Help:      "Total number of final decisions by action",
		}, []string{"action"}),
		RiskOverrides: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "risk_overrides_total",
			Help:      "Total number of decisions forced by the risk overlay",
		}),
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "total",
			Help:      "Total number of execution attempts by side and status",
		}, []string{"side", "status"}),

		SocialPosts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "posts_total",
			Help:      "Total number of social posts by platform, type and status",
		}, []string{"platform", "type", "status"}),

		PortfolioValueUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "value_usd",
			Help:      "Portfolio value in USD at the last snapshot",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "open_positions",
			Help:      "Number of open positions at the last snapshot",
		}),
		EthBalance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "eth_balance",
			Help:      "Native gas balance at the last check",
		}),
		LastCycleSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCycle records one finished cycle.
func (m *Metrics) RecordCycle(outcome string, seconds float64, finishedUnix float64) {
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(seconds)
	if outcome == OutcomeOK {
		m.LastCycleSuccess.Set(finishedUnix)
	}
}

// RecordExecution records one execution attempt.
func (m *Metrics) RecordExecution(side string, err error) {
	m.Executions.WithLabelValues(side, status(err)).Inc()
}

// RecordPost records one social post attempt.
func (m *Metrics) RecordPost(platform, postType string, err error) {
	m.SocialPosts.WithLabelValues(platform, postType, status(err)).Inc()
}

// Cycle outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeKillSwitch = "kill_switch"
	OutcomeLowGas     = "low_gas"
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
