// Package metrics documents the Prometheus metrics exported by the scholar
// data proxy. All metrics are defined in their owning packages (cache,
// aminer, server) via promauto to keep registration next to the code that
// drives them; this package provides the reference and the shared registry
// handle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the proxy.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - proxy_cache_hits_total{namespace} (Counter): Valid positive records served
//   - proxy_cache_negative_hits_total{namespace} (Counter): Lookups answered by a negative marker
//   - proxy_cache_misses_total{namespace} (Counter): Lookups that found nothing valid
//   - proxy_cache_errors_total{operation} (Counter): Cache read/write/clear failures
//
// Upstream Metrics (pkg/aminer):
//   - upstream_requests_total{target, status} (Counter): Requests by downstream target and outcome
//   - upstream_request_duration_seconds{target} (Histogram): Request duration by target
//   - upstream_retries_total{target} (Counter): Inline retry attempts
//   - upstream_errors_total{kind} (Counter): Failures by error kind
//
// HTTP Metrics (pkg/server):
//   - http_requests_total{route, status} (Counter): Inbound requests by route and status code
//
// Example Prometheus Queries:
//
//   # Cache hit rate per namespace
//   sum by (namespace) (rate(proxy_cache_hits_total[5m])) /
//   (sum by (namespace) (rate(proxy_cache_hits_total[5m])) + sum by (namespace) (rate(proxy_cache_misses_total[5m])))
//
//   # Upstream error rate
//   rate(upstream_errors_total[5m])
//
//   # P95 scrape latency
//   histogram_quantile(0.95, rate(upstream_request_duration_seconds_bucket{target="scrape"}[5m]))
