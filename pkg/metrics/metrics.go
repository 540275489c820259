package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline holds Prometheus instruments for the call-processing pipeline.
// Instances are registered against an injected registry so tests can use a
// private one instead of the process-global default.
type Pipeline struct {
	CallsSubmitted   prometheus.Counter
	JobsProcessed    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	SweeperRequeued  prometheus.Counter
	QueueDepth       prometheus.Gauge
	ReportsGenerated prometheus.Counter
}

// Job outcome label values for JobsProcessed.
const (
	OutcomeInsightReady = "insight_ready"
	OutcomeRetried      = "retried"
	OutcomeFailed       = "failed"
	OutcomeDropped      = "dropped"
	OutcomeReleased     = "released"
)

// NewPipeline creates and registers pipeline metrics.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		CallsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "caip_calls_submitted_total",
			Help: "Total number of call recordings accepted by the ingestion gate",
		}),
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caip_jobs_processed_total",
			Help: "Total number of processing jobs handled by workers, by outcome",
		}, []string{"outcome"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "caip_analysis_duration_seconds",
			Help:    "Wall-clock duration of the analysis capability per attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		SweeperRequeued: f.NewCounter(prometheus.CounterOpts{
			Name: "caip_sweeper_requeued_total",
			Help: "Total number of call records re-enqueued by the recovery sweep",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "caip_queue_depth",
			Help: "Approximate number of jobs waiting in the ready queue",
		}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "caip_reports_generated_total",
			Help: "Total number of analytics reports generated",
		}),
	}
}
