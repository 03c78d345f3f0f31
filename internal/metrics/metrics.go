// Package metrics defines the prometheus collectors for statement
// processing. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

const namespace = "statement_analyzer"

type Metrics struct {
	documents       *prometheus.CounterVec
	transactions    prometheus.Counter
	stageDuration   *prometheus.HistogramVec
	processDuration prometheus.Histogram
	panics          prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed, by winning extraction engine and layout.",
		}, []string{"engine", "layout"}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_parsed_total",
			Help:      "Transactions parsed across all documents.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_stage_duration_seconds",
			Help:      "Time spent in each extraction engine, by outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"engine", "outcome"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "End-to-end processing time per document.",
			Buckets:   prometheus.DefBuckets,
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_panics_total",
			Help:      "Panics recovered while processing a document.",
		}),
	}
	reg.MustRegister(m.documents, m.transactions, m.stageDuration, m.processDuration, m.panics)
	return m
}

// ObserveStage records one extraction engine attempt. Its signature matches
// extractor.StageObserver.
func (m *Metrics) ObserveStage(engine models.Engine, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(engine), outcome).Observe(elapsed.Seconds())
}

// ObserveDocument records a finished document.
func (m *Metrics) ObserveDocument(engine models.Engine, layout models.Layout, txns int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if layout == "" {
		layout = "none"
	}
	m.documents.WithLabelValues(string(engine), string(layout)).Inc()
	m.transactions.Add(float64(txns))
	m.processDuration.Observe(elapsed.Seconds())
}

// ObservePanic records a recovered panic.
func (m *Metrics) ObservePanic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}
