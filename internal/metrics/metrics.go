// Package metrics defines the Prometheus collectors for ingestion,
// retrieval, question synthesis and the HTTP boundary.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Synthesis outcomes.
const (
	OutcomeGenerated = "generated"
	OutcomeTooShort  = "too_short"
	OutcomeFailed    = "failed"
)

// Retrieval modes.
const (
	ModeVector  = "vector"
	ModeSubject = "subject"
	ModeFigure  = "figure"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	DocumentsIngested   *prometheus.CounterVec
	RecordsExtracted    *prometheus.CounterVec
	SynthesisTotal      *prometheus.CounterVec
	RetrievalLatency    *prometheus.HistogramVec
	StoreQuestions      prometheus.Gauge
	StoreImages         prometheus.Gauge
	gatherer            prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A registry is
// created when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examprep_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "examprep_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		DocumentsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examprep_documents_ingested_total",
				Help: "Documents processed by ingestion, by status (ok, failed).",
			},
			[]string{"status"},
		),
		RecordsExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examprep_records_extracted_total",
				Help: "Records produced by ingestion, by kind (question, image, association).",
			},
			[]string{"kind"},
		),
		SynthesisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "examprep_synthesis_total",
				Help: "Question synthesis attempts per candidate, by outcome.",
			},
			[]string{"outcome"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "examprep_retrieval_latency_seconds",
				Help:    "Question retrieval latency in seconds, by mode (vector, subject).",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"mode"},
		),
		StoreQuestions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "examprep_store_questions",
				Help: "Question candidates currently in the store.",
			},
		),
		StoreImages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "examprep_store_images",
				Help: "Images currently in the store.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DocumentsIngested,
		m.RecordsExtracted,
		m.SynthesisTotal,
		m.RetrievalLatency,
		m.StoreQuestions,
		m.StoreImages,
	)

	return m
}

// Handler returns the scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) DocumentIngested(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.DocumentsIngested.WithLabelValues(status).Inc()
}

func (m *Metrics) Extracted(questions, images, associations int) {
	if m == nil {
		return
	}
	m.RecordsExtracted.WithLabelValues("question").Add(float64(questions))
	m.RecordsExtracted.WithLabelValues("image").Add(float64(images))
	m.RecordsExtracted.WithLabelValues("association").Add(float64(associations))
}

func (m *Metrics) StoreSize(questions, images int) {
	if m == nil {
		return
	}
	m.StoreQuestions.Set(float64(questions))
	m.StoreImages.Set(float64(images))
}

func (m *Metrics) Synthesis(outcome string) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRetrieval(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalLatency.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
