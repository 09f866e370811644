// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cache_hits_total",
			Help: "Total number of cache reads served fresh",
		},
		[]string{"api"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cache_misses_total",
			Help: "Total number of cache reads that required an upstream fetch",
		},
		[]string{"api"},
	)

	CacheStaleServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_cache_stale_serves_total",
			Help: "Total number of stale entries served under background refresh",
		},
		[]string{"api"},
	)

	BackgroundRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_background_refreshes_total",
			Help: "Total number of detached background refreshes by outcome",
		},
		[]string{"api", "outcome"},
	)

	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_upstream_calls_total",
			Help: "Total number of upstream fetch backend invocations",
		},
		[]string{"api", "method"},
	)

	UpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_upstream_failures_total",
			Help: "Total number of failed upstream fetch backend invocations",
		},
		[]string{"api", "method"},
	)

	FanOutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_fanout_duration_seconds",
			Help: "Duration of cross-organization fan-out runs in seconds",
		},
		[]string{"method"},
	)

	EntitiesOmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_entities_omitted_total",
			Help: "Entities whose nested fetch failed and were emitted without the nested collection",
		},
		[]string{"job"},
	)
)
