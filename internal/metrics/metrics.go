// Package metrics holds the Prometheus collectors of the converter.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeReady   = "ready"
	OutcomeError   = "error"
	OutcomeDropped = "dropped" // document deleted before its result arrived
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	documentsAccepted  prometheus.Counter
	filesRejected      prometheus.Counter
	extractions        *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	transactions       prometheus.Counter
	exports            *prometheus.CounterVec
	httpRequests       *prometheus.HistogramVec
}

// New registers every collector in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		documentsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "statement_documents_accepted_total",
			Help: "Uploaded PDFs accepted for extraction.",
		}),
		filesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "statement_files_rejected_total",
			Help: "Uploaded files rejected by the acceptance filter.",
		}),
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statement_extractions_total",
				Help: "Finished extractions by outcome.",
			},
			[]string{"outcome"},
		),
		extractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "statement_extraction_duration_seconds",
			Help:    "Time spent in the extraction service per document.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		}),
		transactions: factory.NewCounter(prometheus.CounterOpts{
			Name: "statement_transactions_extracted_total",
			Help: "Transactions extracted from ready documents.",
		}),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statement_exports_total",
				Help: "Workbook exports by scope.",
			},
			[]string{"scope"},
		),
		httpRequests: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statement_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern, method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordUpload counts one upload batch.
func (m *Metrics) RecordUpload(accepted, rejected int) {
	m.documentsAccepted.Add(float64(accepted))
	m.filesRejected.Add(float64(rejected))
}

// RecordExtraction counts a finished extraction and how long the service took.
func (m *Metrics) RecordExtraction(outcome string, d time.Duration, transactions int) {
	m.extractions.WithLabelValues(outcome).Inc()
	m.extractionDuration.Observe(d.Seconds())
	if outcome == OutcomeReady {
		m.transactions.Add(float64(transactions))
	}
}

// RecordExport counts a written workbook. scope is "all" or "document".
func (m *Metrics) RecordExport(scope string) {
	m.exports.WithLabelValues(scope).Inc()
}

// RecordRequest observes one served HTTP request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordRequest(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}
