package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes.
const (
	outcomeHit         = "hit"
	outcomeMiss        = "miss"
	outcomeNetwork     = "network"
	outcomeFallback    = "fallback"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

var (
	strategyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_strategy_requests_total",
		Help: "Requests served per strategy and outcome",
	}, []string{"strategy", "outcome"})

	strategyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_strategy_duration_seconds",
		Help:    "Time to produce a response per strategy",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"strategy"})

	backgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_background_tasks_total",
		Help: "Finished background tasks by task and result",
	}, []string{"task", "result"})

	backgroundInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_background_tasks_inflight",
		Help: "Background tasks currently running",
	})
)
