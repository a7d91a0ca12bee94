package cache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups answered from a generation, by purpose
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of generation lookups that found an entry",
		},
		[]string{"purpose"}, // "static-assets", "api-data"
	)

	// CacheMisses tracks lookups that found nothing, by purpose
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of generation lookups that found nothing",
		},
		[]string{"purpose"},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "open", "names", "delete", "match", "put", "keys"
	)

	// GenerationsDeleted tracks whole generations destroyed
	GenerationsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_cache_generations_deleted_total",
			Help: "Total number of cache generations deleted",
		},
	)
)

// observeMatch records the outcome of a lookup.
func observeMatch(name string, err error) {
	switch {
	case err == nil:
		CacheHits.WithLabelValues(purposeOf(name)).Inc()
	case errors.Is(err, ErrCacheMiss):
		CacheMisses.WithLabelValues(purposeOf(name)).Inc()
	default:
		CacheErrors.WithLabelValues("match").Inc()
	}
}
