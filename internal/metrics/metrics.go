// Package metrics exposes the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsIngestedTotal       *prometheus.CounterVec
	refreshTotal               *prometheus.CounterVec
	refreshDurationSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	cacheRequestsTotal         *prometheus.CounterVec
	alertsDispatchedTotal      *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		recordsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_records_ingested_total",
				Help: "Total records upserted per stream.",
			},
			[]string{"stream"},
		)

		refreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_refresh_total",
				Help: "Refresh passes per stream, labeled by outcome.",
			},
			[]string{"stream", "outcome"},
		)

		refreshDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_refresh_duration_seconds",
				Help:    "Histogram of per-stream refresh durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stream"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_cache_requests_total",
				Help: "Read cache lookups, labeled by stream and result.",
			},
			[]string{"stream", "result"},
		)

		alertsDispatchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_alerts_dispatched_total",
				Help: "Final-failure alerts dispatched, labeled by transport.",
			},
			[]string{"transport"},
		)
	})
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIngest adds upserted records to the stream counter.
func ObserveIngest(stream string, records int) {
	if records > 0 {
		recordsIngestedTotal.WithLabelValues(stream).Add(float64(records))
	}
}

// ObserveRefresh records one stream refresh outcome and duration.
func ObserveRefresh(stream, outcome string, duration time.Duration) {
	refreshTotal.WithLabelValues(stream, outcome).Inc()
	refreshDurationSeconds.WithLabelValues(stream).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCache records a cache lookup result ("hit" or "miss").
func ObserveCache(stream, result string) {
	cacheRequestsTotal.WithLabelValues(stream, result).Inc()
}

// ObserveAlert counts a dispatched alert per transport.
func ObserveAlert(transport string) {
	alertsDispatchedTotal.WithLabelValues(transport).Inc()
}
