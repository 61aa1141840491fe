// Package metrics owns the prometheus registry exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship",
			Name:      "transitions_total",
			Help:      "Application lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	stageReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship",
			Name:      "stage_reviews_total",
			Help:      "SSC stage reviews recorded",
		},
		[]string{"stage", "outcome"},
	)

	ledgerPostingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship",
			Name:      "ledger_operations_total",
			Help:      "Budget ledger postings by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	sideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship",
			Name:      "side_effect_failures_total",
			Help:      "Post-commit side effects that failed",
		},
		[]string{"step"},
	)

	stalledStages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scholarship",
		Name:      "stalled_applications",
		Help:      "Applications with an SSC stage left rejected past the threshold",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scholarship",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scholarship",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		transitionsTotal,
		stageReviewsTotal,
		ledgerPostingsTotal,
		sideEffectFailuresTotal,
		stalledStages,
		httpRequestsTotal,
		httpDuration,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveTransition(operation string, err error) {
	transitionsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func ObserveStageReview(stage, result string) {
	stageReviewsTotal.WithLabelValues(stage, result).Inc()
}

func ObserveLedger(txType string, err error) {
	ledgerPostingsTotal.WithLabelValues(txType, outcome(err)).Inc()
}

func ObserveSideEffectFailure(step string) {
	sideEffectFailuresTotal.WithLabelValues(step).Inc()
}

func SetStalledStages(n int) {
	stalledStages.Set(float64(n))
}

func ObserveHTTP(method, route, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(seconds)
}
