package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for extraction runs.
type Metrics struct {
	Registry        *prometheus.Registry
	SessionsTotal   *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	ListingsTotal   prometheus.Counter
	ListingDuration prometheus.Histogram
	ScrollsTotal    *prometheus.CounterVec
	FaultsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapscraper_sessions_total",
			Help: "Scrape sessions that reached a terminal status.",
		},
		[]string{"status"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapscraper_active_sessions",
			Help: "Scrape sessions currently running.",
		},
	)
	listings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mapscraper_listings_total",
			Help: "Listings processed, including ones that yielded empty records.",
		},
	)
	listingDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mapscraper_listing_duration_seconds",
			Help:    "Time spent opening and reading one listing.",
			Buckets: prometheus.DefBuckets,
		},
	)
	scrolls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapscraper_scrolls_total",
			Help: "Result-list scroll attempts by outcome.",
		},
		[]string{"result"},
	)
	faults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapscraper_faults_total",
			Help: "Faults by the tier that absorbed them.",
		},
		[]string{"tier"},
	)

	registry.MustRegister(sessions, active, listings, listingDuration, scrolls, faults)

	return &Metrics{
		Registry:        registry,
		SessionsTotal:   sessions,
		ActiveSessions:  active,
		ListingsTotal:   listings,
		ListingDuration: listingDuration,
		ScrollsTotal:    scrolls,
		FaultsTotal:     faults,
	}
}

// SessionStarted marks a session as running.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionFinished records the terminal status of a session.
func (m *Metrics) SessionFinished(status string) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
}

// ObserveListing records one processed listing.
func (m *Metrics) ObserveListing(d time.Duration) {
	if m == nil {
		return
	}
	m.ListingsTotal.Inc()
	m.ListingDuration.Observe(d.Seconds())
}

// IncScroll counts a scroll attempt by result ("ok" or "failed").
func (m *Metrics) IncScroll(result string) {
	if m == nil {
		return
	}
	m.ScrollsTotal.WithLabelValues(result).Inc()
}

// IncFault counts a fault for its tier label.
func (m *Metrics) IncFault(tier string) {
	if m == nil {
		return
	}
	m.FaultsTotal.WithLabelValues(tier).Inc()
}
