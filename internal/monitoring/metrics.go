package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchAttempts       *prometheus.CounterVec
	FetchRetries        prometheus.Counter
	FetchDuration       *prometheus.HistogramVec
	ResultsTotal        *prometheus.CounterVec
	QueriesInFlight     prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "etymology_fetch_attempts_total",
			Help: "Word page requests sent, by response class.",
		}, []string{"result"}), // ok, http_error, network_error
		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "etymology_fetch_retries_total",
			Help: "Retries scheduled after transient fetch failures.",
		}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etymology_fetch_duration_seconds",
			Help:    "Duration of a word page fetch including retries.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		ResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "etymology_results_total",
			Help: "Resolved queries by outcome and error kind.",
		}, []string{"outcome", "error_kind"}),
		QueriesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "etymology_queries_in_flight",
			Help: "Queries currently being fetched and extracted.",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncFetchAttempt(result string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

func (m *Metrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) IncResult(outcome, errorKind string) {
	if m == nil {
		return
	}
	m.ResultsTotal.WithLabelValues(outcome, errorKind).Inc()
}

func (m *Metrics) QueryStarted() {
	if m == nil {
		return
	}
	m.QueriesInFlight.Inc()
}

func (m *Metrics) QueryDone() {
	if m == nil {
		return
	}
	m.QueriesInFlight.Dec()
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}
