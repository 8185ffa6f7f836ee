// Package metrics exposes Prometheus collectors for the scraper service.
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
	scrapeJobsTotal            *prometheus.CounterVec
	scrapePagesTotal           prometheus.Counter
	listingsFoundTotal         prometheus.Counter
	listingsNewTotal           prometheus.Counter
	webhookDeliveriesTotal     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeRuns                 prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_jobs_total",
				Help: "Total number of scrape jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		scrapePagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of result pages crawled.",
			},
		)

		listingsFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_listings_found_total",
				Help: "Total listings that passed the content filters.",
			},
		)

		listingsNewTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_listings_new_total",
				Help: "Total listings not seen within the retention window.",
			},
		)

		webhookDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_webhook_deliveries_total",
				Help: "Total webhook delivery attempts, labeled by outcome.",
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_runs",
				Help: "Number of scrape jobs currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the finished-job counter for the given status.
func ObserveJob(status string) {
	scrapeJobsTotal.WithLabelValues(status).Inc()
}

// ObserveRun records the page and listing volumes of one finished run.
func ObserveRun(pages, found, newListings int) {
	scrapePagesTotal.Add(float64(pages))
	listingsFoundTotal.Add(float64(found))
	listingsNewTotal.Add(float64(newListings))
}

// ObserveWebhookDelivery increments the delivery counter for the given outcome.
func ObserveWebhookDelivery(outcome string) {
	webhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	activeRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	activeRuns.Dec()
}
