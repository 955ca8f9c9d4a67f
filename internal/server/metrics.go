package server

//
// Prometheus metrics
//

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// summaryObjectives returns the quantiles tracked by duration summaries.
func summaryObjectives() map[float64]float64 {
	return map[float64]float64{
		0.5:  0.010,
		0.9:  0.010,
		0.99: 0.001,
	}
}

// Metrics holds the collectors of one server instance. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsCount    *prometheus.CounterVec
	requestsInflight prometheus.Gauge
	requestDuration  *prometheus.SummaryVec
	documentsWritten prometheus.Counter
	documentsStored  prometheus.Gauge
	bytesReceived    prometheus.Counter
	invalidBodies    *prometheus.CounterVec
}

// NewMetrics registers the docstore collectors, plus the Go runtime and
// process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// requestsCount counts the requests we served.
		requestsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docstore_requests_count",
			Help: "Total number of processed requests",
		}, []string{"route", "code", "method"}),

		// requestsInflight gauges the requests currently being served.
		requestsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docstore_requests_inflight_gauge",
			Help: "The number of requests currently inflight",
		}),

		// requestDuration summarizes the time to produce a response.
		requestDuration: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "docstore_request_duration_seconds",
			Help:       "Summarizes the time to serve a request (in seconds)",
			Objectives: summaryObjectives(),
		}, []string{"route"}),

		documentsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "docstore_documents_written_count",
			Help: "Total number of documents stored or overwritten",
		}),

		documentsStored: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docstore_documents_stored",
			Help: "The number of documents currently stored",
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "docstore_received_bytes_count",
			Help: "Total size of stored request bodies (in bytes)",
		}),

		invalidBodies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docstore_rejected_bodies_count",
			Help: "Total number of rejected request bodies",
		}, []string{"reason"}),
	}
}

// instrument wraps h so that requests served by it are counted, timed and
// tracked in flight under the given route label.
func (m *Metrics) instrument(route string, h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	labels := prometheus.Labels{"route": route}
	h = promhttp.InstrumentHandlerCounter(m.requestsCount.MustCurryWith(labels), h)
	h = promhttp.InstrumentHandlerDuration(m.requestDuration.MustCurryWith(labels), h)
	return promhttp.InstrumentHandlerInFlight(m.requestsInflight, h)
}

func (m *Metrics) observeWrite(size int) {
	if m == nil {
		return
	}
	m.documentsWritten.Inc()
	m.bytesReceived.Add(float64(size))
}

// observeStored records the current document count. Negative counts mean
// listing failed and are ignored.
func (m *Metrics) observeStored(n int) {
	if m == nil || n < 0 {
		return
	}
	m.documentsStored.Set(float64(n))
}

func (m *Metrics) observeRejected(reason string) {
	if m == nil {
		return
	}
	m.invalidBodies.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
