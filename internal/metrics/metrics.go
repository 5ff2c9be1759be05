package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the counters exported by the
// share service.
type Metrics struct {
	registry *prometheus.Registry

	sharesIssued *prometheus.CounterVec
	accessChecks *prometheus.CounterVec
	downloads    prometheus.Counter
	httpRequests *prometheus.CounterVec
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sharesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpshare_shares_issued_total",
			Help: "Number of share tokens issued, by policy kind.",
		}, []string{"kind"}),
		accessChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpshare_access_checks_total",
			Help: "Number of access checks, by decision.",
		}, []string{"decision"}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ftpshare_downloads_total",
			Help: "Number of completed shared-file downloads.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpshare_http_requests_total",
			Help: "Number of HTTP requests, by method and status code.",
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sharesIssued,
		m.accessChecks,
		m.downloads,
		m.httpRequests,
	)
	return m
}

// ShareIssued records an issued token.
func (m *Metrics) ShareIssued(kind string) {
	m.sharesIssued.WithLabelValues(kind).Inc()
}

// AccessChecked records the outcome of an access check.
func (m *Metrics) AccessChecked(decision string) {
	m.accessChecks.WithLabelValues(decision).Inc()
}

// DownloadCompleted records a finished download.
func (m *Metrics) DownloadCompleted() {
	m.downloads.Inc()
}

// RequestObserved records one HTTP request.
func (m *Metrics) RequestObserved(method, status string) {
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
