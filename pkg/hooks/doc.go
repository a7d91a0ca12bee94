// Package hooks implements the peripheral triggers of the offline layer:
// replaying writes that were deferred while offline, and displaying push
// notifications. Neither touches the cache generation store.
//
// Metrics:
//   - offline_sync_actions_total{result}: replayed, dropped, requeued
//   - offline_notifications_total{result}: displayed, empty, failed
package hooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_sync_actions_total",
		Help: "Deferred write actions handled during sync by result",
	}, []string{"result"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_notifications_total",
		Help: "Push payloads handled by result",
	}, []string{"result"})
)
