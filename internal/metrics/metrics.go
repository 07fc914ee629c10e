// Package metrics defines the Prometheus metrics exported by seclog-server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seclog"

// Metrics holds all Prometheus metrics for the reporter.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConnectionsTotal   prometheus.Counter
	ActiveConnections  prometheus.Gauge
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	UploadBytesTotal   prometheus.Counter
	ExtractionFailures *prometheus.CounterVec
	PipelineRuns       *prometheus.CounterVec
	SummarizerFailures *prometheus.CounterVec
}

// New initializes the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Total number of accepted connections.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Connections currently being handled.",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of requests by route.",
		}, []string{"route"}), // route: upload, default, bad_request
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Time from accept to response written.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route"}),
		UploadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "upload_bytes_total",
			Help:      "Total number of uploaded file bytes.",
		}),
		ExtractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "extraction_failures_total",
			Help:      "Uploads that fell back to the default input, by reason.",
		}, []string{"reason"}),
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome.",
		}, []string{"outcome"}),
		SummarizerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "summarizer_failures_total",
			Help:      "Summarizer calls that degraded the report, by kind.",
		}, []string{"kind"}),
	}
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

// ConnectionClosed records the end of a connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

// RequestServed records one routed request.
func (m *Metrics) RequestServed(route string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Uploaded records the size of an extracted upload.
func (m *Metrics) Uploaded(n int) {
	if m == nil {
		return
	}
	m.UploadBytesTotal.Add(float64(n))
}

// ExtractionFailed records an upload that fell back to the default input.
func (m *Metrics) ExtractionFailed(reason string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.WithLabelValues(reason).Inc()
}

// PipelineRun records the outcome of one pipeline run.
func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

// SummarizerFailed records a degraded summarization.
func (m *Metrics) SummarizerFailed(kind string) {
	if m == nil {
		return
	}
	m.SummarizerFailures.WithLabelValues(kind).Inc()
}

// NewAdminServer returns the admin HTTP server exposing /metrics and /healthz.
func NewAdminServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
