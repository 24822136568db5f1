package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks valid positive records served, by namespace.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_cache_hits_total",
			Help: "Total number of cache hits on positive records",
		},
		[]string{"namespace"},
	)

	// cacheNegativeHits tracks negative marker short-circuits, by namespace.
	cacheNegativeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_cache_negative_hits_total",
			Help: "Total number of lookups answered by a negative marker",
		},
		[]string{"namespace"},
	)

	// cacheMisses tracks lookups that found no valid record.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// cacheErrors tracks cache operation failures.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "read", "write", "clear"
	)
)
