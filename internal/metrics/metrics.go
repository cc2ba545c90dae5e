// Package metrics exposes Prometheus collectors for the crawl, index, and chat pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerPDFsTotal              *prometheus.CounterVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	indexBatchesTotal             *prometheus.CounterVec
	indexChunksStoredTotal        prometheus.Counter
	chatRequestsTotal             *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerPDFsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pdfs_total",
				Help: "Total number of PDFs ingested, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		indexBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_batches_total",
				Help: "Total number of embedding batches, labeled by status.",
			},
			[]string{"status"},
		)

		indexChunksStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "index_chunks_stored_total",
				Help: "Total number of chunks upserted into the vector store.",
			},
		)

		chatRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total number of chat requests, labeled by outcome.",
			},
			[]string{"outcome"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one page outcome ("ok", "failed", "duplicate").
func ObservePage(site, status string) {
	Init()
	crawlerPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObservePDF counts one PDF outcome ("ok", "download_failed", "decode_failed").
func ObservePDF(status string) {
	Init()
	crawlerPDFsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveBatch counts one embedding batch outcome and the chunks it stored.
func ObserveBatch(status string, stored int) {
	Init()
	indexBatchesTotal.WithLabelValues(status).Inc()
	if stored > 0 {
		indexChunksStoredTotal.Add(float64(stored))
	}
}

// ObserveChat counts one chat outcome ("answered", "no_match", "error").
func ObserveChat(outcome string) {
	Init()
	chatRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
