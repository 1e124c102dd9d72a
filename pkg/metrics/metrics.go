// Package metrics exposes the Prometheus registry used by places-scout.
// Metrics are defined next to the code that records them (client, cache,
// aggregate, enrich, pipeline) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every places-scout metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the Prometheus exposition format for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - places_requests_total{endpoint, status} (Counter): Requests by endpoint (searchText, placeDetails) and HTTP status
//   - places_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - places_errors_total{class} (Counter): Errors by class
//
// Retry Metrics (pkg/client):
//   - places_retries_total{error_class} (Counter): Retry attempts by error class
//   - places_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - places_retry_exhausted_total{error_class} (Counter): Calls that used every attempt
//
// Cache Metrics (pkg/cache):
//   - places_cache_hits_total{layer="redis"} (Counter): Detail cache hits
//   - places_cache_misses_total (Counter): Detail cache misses
//   - places_cache_written_bytes_total{layer="redis"} (Counter): Bytes written to the cache
//   - places_cache_errors_total{operation} (Counter): Cache operation errors
//
// Aggregation Metrics (pkg/aggregate):
//   - places_aggregate_candidates_fetched_total (Counter): Candidates inspected
//   - places_aggregate_candidates_accepted_total (Counter): Candidates admitted to a set
//   - places_aggregate_pages_total (Counter): Search pages fetched
//   - places_aggregate_keyword_failures_total (Counter): Keywords abandoned
//
// Enrichment Metrics (pkg/enrich):
//   - places_enrich_details_total{outcome} (Counter): Records by outcome (ok, degraded)
//   - places_enrich_in_flight (Gauge): Detail fetches in flight
//   - places_enrich_duration_seconds (Histogram): Batch duration
//
// Pipeline Metrics (pkg/pipeline):
//   - places_pipeline_runs_total{outcome} (Counter): Runs by outcome (ok, empty, invalid, failed)
//   - places_pipeline_duration_seconds (Histogram): Run duration
//
// Example Prometheus Queries:
//
//   # Degraded Record Ratio
//   sum(rate(places_enrich_details_total{outcome="degraded"}[5m])) /
//   sum(rate(places_enrich_details_total[5m]))
//
//   # Continuation Tokens Not Yet Valid
//   rate(places_retries_total{error_class="token_not_ready"}[5m])
//
//   # Acceptance Rate
//   rate(places_aggregate_candidates_accepted_total[5m]) /
//   rate(places_aggregate_candidates_fetched_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(places_request_duration_seconds_bucket[5m]))
