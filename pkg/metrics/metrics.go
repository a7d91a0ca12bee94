// Package metrics exposes the Prometheus registry of the offline proxy.
// Collectors are defined with promauto in the packages that own them
// (cache, network, strategy, lifecycle, connectivity, hooks); this package
// serves them and documents the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers its collectors with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Catalogue lists the metric names exported by the offline proxy.
var Catalogue = []string{
	// pkg/cache
	"offline_cache_hits_total",
	"offline_cache_misses_total",
	"offline_cache_errors_total",
	"offline_cache_generations_deleted_total",
	// pkg/network
	"offline_fetches_total",
	"offline_fetch_duration_seconds",
	"offline_fetch_retries_total",
	"offline_fetch_retry_backoff_seconds",
	"offline_fetch_retry_exhausted_total",
	// pkg/strategy
	"offline_strategy_requests_total",
	"offline_strategy_duration_seconds",
	"offline_background_tasks_total",
	"offline_background_tasks_inflight",
	// pkg/lifecycle
	"offline_lifecycle_transitions_total",
	"offline_install_duration_seconds",
	"offline_install_entries_total",
	"offline_active_version",
	"offline_intercepted_requests_total",
	// pkg/connectivity
	"offline_connectivity_online",
	"offline_connectivity_restores_total",
	"offline_connectivity_failures_total",
	// pkg/hooks
	"offline_sync_actions_total",
	"offline_notifications_total",
}

// Example Prometheus Queries:
//
//   # Static asset hit rate
//   sum(rate(offline_cache_hits_total{purpose="static-assets"}[5m])) /
//   (sum(rate(offline_cache_hits_total{purpose="static-assets"}[5m])) +
//    sum(rate(offline_cache_misses_total{purpose="static-assets"}[5m])))
//
//   # Requests answered with the synthetic 503
//   sum(rate(offline_strategy_requests_total{outcome=~"unavailable|error"}[5m]))
//
//   # API responses served from the fallback cache
//   rate(offline_strategy_requests_total{strategy="network-first",outcome="fallback"}[5m])
//
//   # Currently offline
//   offline_connectivity_online == 0
//
//   # P95 install duration
//   histogram_quantile(0.95, rate(offline_install_duration_seconds_bucket[1h]))
