package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit import pipeline.
type Metrics struct {
	// Uploads by outcome ("imported", "previewed", "rejected", "failed") and
	// the stage that decided it, StageNone for successes.
	Uploads *prometheus.CounterVec

	FindingsImported prometheus.Counter

	ExtractLatency prometheus.Histogram

	// Gateway call latencies by operation
	GatewayLatency *prometheus.HistogramVec

	FindingUpdates *prometheus.CounterVec

	AttachmentsStored prometheus.Counter
}

// New registers the audit metrics on reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "actionplan_uploads_total",
			Help: "Uploaded action plans by outcome and stage",
		}, []string{"outcome", "stage"}),

		FindingsImported: f.NewCounter(prometheus.CounterOpts{
			Name: "actionplan_findings_imported_total",
			Help: "Finding rows written by successful imports",
		}),

		ExtractLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "actionplan_extract_duration_seconds",
			Help:    "Duration of workbook parsing and extraction",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actionplan_gateway_duration_seconds",
			Help:    "Duration of persistence gateway operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		FindingUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "actionplan_finding_updates_total",
			Help: "Finding edits by result",
		}, []string{"result"}),

		AttachmentsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "actionplan_attachments_stored_total",
			Help: "Files attached to findings",
		}),
	}
}

// StageNone labels uploads that no stage rejected.
const StageNone = "none"

// IncrementUpload records how an upload ended.
func (m *Metrics) IncrementUpload(outcome, stage string) {
	if m != nil {
		m.Uploads.WithLabelValues(outcome, stage).Inc()
	}
}

func (m *Metrics) AddFindingsImported(n int) {
	if m != nil {
		m.FindingsImported.Add(float64(n))
	}
}

func (m *Metrics) ObserveExtract(start time.Time) {
	if m != nil {
		m.ExtractLatency.Observe(time.Since(start).Seconds())
	}
}

// ObserveGateway records the duration of one gateway operation.
func (m *Metrics) ObserveGateway(operation string, start time.Time) {
	if m != nil {
		m.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrementFindingUpdate(result string) {
	if m != nil {
		m.FindingUpdates.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementAttachments() {
	if m != nil {
		m.AttachmentsStored.Inc()
	}
}
