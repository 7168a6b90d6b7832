// Package services – Prometheus instrumentation for the orchestration
// layer. Counters here track remote fetch volume and cache effectiveness;
// label cardinality is bounded to the fixed operation names.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// feedFetches counts remote feed page fetches by operation.
	feedFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcore_feed_fetches_total",
			Help: "Total number of remote feed page fetches.",
		},
		[]string{"op"}, // initial | more | new
	)

	// feedFetchSkips counts first-page fetches whose result already matched
	// the stored feed, so the store write was suppressed.
	feedFetchSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcore_feed_fetch_skips_total",
			Help: "First-page fetches that matched the stored feed and were not re-applied.",
		},
	)

	// mediaCacheHits / mediaCacheMisses track disk cache effectiveness.
	mediaCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcore_media_cache_hits_total",
			Help: "Media loads served from the disk cache.",
		},
	)
	mediaCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcore_media_cache_misses_total",
			Help: "Media loads that required a network download.",
		},
	)

	// mediaDownloads counts completed media downloads by outcome.
	mediaDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcore_media_downloads_total",
			Help: "Completed media downloads.",
		},
		[]string{"outcome"}, // ok | error | forbidden
	)

	// categoriesRefreshes counts remote category list fetches.
	categoriesRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcore_categories_refreshes_total",
			Help: "Remote category list fetches.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		feedFetches,
		feedFetchSkips,
		mediaCacheHits,
		mediaCacheMisses,
		mediaDownloads,
		categoriesRefreshes,
	)
}
