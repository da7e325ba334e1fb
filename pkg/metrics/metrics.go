// Package metrics provides the Prometheus registry and HTTP handler for the page cache.
// All metrics are defined in their respective packages (cache, origin, stats)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the page cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - pagecache_lookups_total{state} (Counter): Lookups by decision (hit, stale, miss)
//   - pagecache_refreshes_scheduled_total{scheduler} (Counter): Refreshes handed to a scheduler
//   - pagecache_refreshes_coalesced_total (Counter): Creates that joined an in-flight fetch
//   - pagecache_creates_total{result} (Counter): Creates by result (stored, origin_error, store_error)
//   - pagecache_store_errors_total{operation} (Counter): Store operation errors
//
// Origin Metrics (pkg/origin):
//   - pagecache_origin_requests_total{status} (Counter): Origin fetches by HTTP status
//   - pagecache_origin_request_duration_seconds (Histogram): Origin fetch duration
//   - pagecache_origin_errors_total{class} (Counter): Errors by class (status, redirect, client, server, network, body)
//
// Stats Metrics (pkg/stats):
//   - pagecache_stats_errors_total{operation} (Counter): Failed daily counter operations
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pagecache_lookups_total{state=~"hit|stale"}[5m])) /
//   sum(rate(pagecache_lookups_total[5m]))
//
//   # Stale Share
//   sum(rate(pagecache_lookups_total{state="stale"}[5m])) /
//   sum(rate(pagecache_lookups_total[5m]))
//
//   # Origin Error Rate
//   rate(pagecache_origin_errors_total[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(pagecache_origin_request_duration_seconds_bucket[5m]))
//
//   # Coalesced Refreshes
//   rate(pagecache_refreshes_coalesced_total[5m])
