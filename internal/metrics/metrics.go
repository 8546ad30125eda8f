package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	PipelineFailures     *prometheus.CounterVec
	ClassifyDuration     prometheus.Histogram
	DemoBatches          prometheus.Counter
	SubmissionsInFlight  prometheus.Gauge
}

// New registers the pipeline metrics against the given registerer. Tests
// pass a fresh prometheus.NewRegistry so repeated construction does not
// collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClassificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queryflow_classifications_total",
			Help: "Tickets classified, by routed department",
		}, []string{"department"}),
		PipelineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queryflow_pipeline_failures_total",
			Help: "Pipeline runs aborted, by error kind",
		}, []string{"kind"}),
		ClassifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "queryflow_classify_duration_seconds",
			Help:    "End-to-end classification pipeline time per submission",
			Buckets: prometheus.DefBuckets,
		}),
		DemoBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "queryflow_demo_batches_total",
			Help: "Synthetic traffic batches generated",
		}),
		SubmissionsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "queryflow_submissions_in_flight",
			Help: "Submissions between optimistic insert and settlement",
		}),
	}
}
