package transfer

import "github.com/prometheus/client_golang/prometheus"

var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sango_pay",
		Subsystem: "transfer",
		Name:      "operations_total",
		Help:      "Total money movement operations by kind and outcome.",
	}, []string{"kind", "outcome"}) // "completed", "replayed", "insufficient_funds", "limit_exceeded", "rate_limited", "blocked", "verification_required", "rejected", "error"

	operationAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sango_pay",
		Subsystem: "transfer",
		Name:      "operation_amount",
		Help:      "Distribution of requested gross amounts in minor units.",
		Buckets:   []float64{100, 1_000, 10_000, 100_000, 500_000, 1_000_000, 5_000_000},
	}, []string{"kind"})

	riskScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sango_pay",
		Subsystem: "transfer",
		Name:      "risk_score",
		Help:      "Distribution of fraud risk scores for scored attempts.",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 75, 90, 100},
	})

	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sango_pay",
		Subsystem: "transfer",
		Name:      "operation_duration_seconds",
		Help:      "End-to-end operation latency in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		operationsTotal,
		operationAmount,
		riskScores,
		operationDuration,
	)
}
