package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_lifecycle_transitions_total",
		Help: "Lifecycle transitions by target state",
	}, []string{"state"})

	installDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_install_duration_seconds",
		Help:    "Duration of install (manifest seeding) by result",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"result"})

	installedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_install_entries_total",
		Help: "Manifest entries written into static generations",
	})

	activeVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_active_version",
		Help: "Generation version of the controller currently serving requests (0 = none)",
	})

	interceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_intercepted_requests_total",
		Help: "Requests seen by the interception point by resource class",
	}, []string{"class"})
)
