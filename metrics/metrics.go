package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline health metrics, scraped via the API server's /metrics.
var (
	SignalsEmitted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fundpilot",
		Name:      "signals_emitted",
		Help:      "Composite signals emitted by the last compose run, by type",
	}, []string{"signal_type"})

	SignalsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "signals_suppressed_total",
		Help:      "Signals removed by the signal guard",
	})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "llm_calls_total",
		Help:      "LLM gateway calls by provider and outcome",
	}, []string{"provider", "outcome"})

	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "llm_tokens_total",
		Help:      "Tokens billed by provider",
	}, []string{"provider"})

	ValidatedSignals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundpilot",
		Name:      "validated_signals_total",
		Help:      "Signal validations completed by the learning loop",
	})

	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fundpilot",
		Name:      "portfolio_value_rmb",
		Help:      "Latest total account value",
	})

	PortfolioDrawdown = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fundpilot",
		Name:      "portfolio_drawdown",
		Help:      "Current portfolio drawdown fraction (negative)",
	})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fundpilot",
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time of one full advisory pipeline run",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// RecordSignals updates the per-type emission gauges from one run.
func RecordSignals(byType map[string]int) {
	for _, t := range []string{"strong_buy", "buy", "sell", "strong_sell"} {
		SignalsEmitted.WithLabelValues(t).Set(float64(byType[t]))
	}
}
