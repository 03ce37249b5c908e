package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// risk-scoring pipeline.
type Metrics struct {
	ObservationsConsumed prometheus.Counter
	PredictionsProduced  prometheus.Counter
	ScoreErrors          prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Batch scoring metrics.
	BatchSize            prometheus.Histogram
	BatchScoringDuration prometheus.Histogram

	// Dataset construction metrics.
	RecordsLoaded      *prometheus.CounterVec // labels: stream
	RecordsDropped     *prometheus.CounterVec // labels: stream, reason={bad_timestamp,bad_value}
	RowsDroppedLowCov  prometheus.Counter
	PredictionsByClass *prometheus.CounterVec // labels: class={LOW,MEDIUM,HIGH}

	// Model lifecycle metrics.
	ModelLoaded  prometheus.Gauge
	ModelReloads prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ObservationsConsumed,
		m.PredictionsProduced,
		m.ScoreErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchScoringDuration,
		m.RecordsLoaded,
		m.RecordsDropped,
		m.RowsDroppedLowCov,
		m.PredictionsByClass,
		m.ModelLoaded,
		m.ModelReloads,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "observations_consumed_total",
			Help:      "Total raw observations read from the source topic.",
		}),
		PredictionsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "predictions_produced_total",
			Help:      "Total scored predictions written to the sink topic.",
		}),
		ScoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "score_errors_total",
			Help:      "Total observation scoring failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rockfall",
			Name:      "pipeline_running",
			Help:      "1 when the scoring pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rockfall",
			Name:      "batch_size",
			Help:      "Number of observations per batch extracted from the source.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rockfall",
			Name:      "batch_scoring_duration_seconds",
			Help:      "Duration of a complete extract-score-publish cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		RecordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "records_loaded_total",
			Help:      "Raw records accepted per stream kind.",
		}, []string{"stream"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "records_dropped_total",
			Help:      "Raw records dropped during loading by stream and reason.",
		}, []string{"stream", "reason"}),
		RowsDroppedLowCov: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "rows_dropped_low_coverage_total",
			Help:      "Aligned rows dropped for holding under 60% non-null columns.",
		}),
		PredictionsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "predictions_by_class_total",
			Help:      "Scored predictions by risk class.",
		}, []string{"class"}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rockfall",
			Name:      "model_loaded",
			Help:      "1 when a model artifact pair is loaded and serving.",
		}),
		ModelReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rockfall",
			Name:      "model_reloads_total",
			Help:      "Total successful model reloads.",
		}),
	}
}
