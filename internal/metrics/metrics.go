package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// UpstreamRequestsTotal counts Remote Report API calls by endpoint and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_portal",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total Remote Report API requests, labeled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// UpstreamDurationSeconds is the round-trip time of Remote Report API calls.
	UpstreamDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "report_portal",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Remote Report API round-trip time.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	// DownloadsInFlight is the number of report PDFs currently being fetched.
	DownloadsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "report_portal",
		Subsystem: "reports",
		Name:      "downloads_in_flight",
		Help:      "Report PDF downloads currently in flight.",
	})

	// StaleResponsesTotal counts responses dropped because a newer request superseded them.
	StaleResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_portal",
		Subsystem: "reports",
		Name:      "stale_responses_total",
		Help:      "Responses discarded because a newer request of the same family was issued.",
	}, []string{"family"})

	// ActiveViews is the number of live per-session views.
	ActiveViews = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "report_portal",
		Subsystem: "views",
		Name:      "active",
		Help:      "Per-session views currently held in memory.",
	}, []string{"view"})
)

// Register registers portal metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			UpstreamRequestsTotal,
			UpstreamDurationSeconds,
			DownloadsInFlight,
			StaleResponsesTotal,
			ActiveViews,
		)
	})
}

func ObserveUpstream(endpoint string, outcome string, started time.Time) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	UpstreamDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
