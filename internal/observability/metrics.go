package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coral_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL jobs.
type Metrics struct {
	Runs            *prometheus.CounterVec   // labels: job={reload,status}, outcome={success,degraded,no_data,error}
	RunDuration     *prometheus.HistogramVec // labels: job
	PipelineRunning prometheus.Gauge

	// Source reader metrics.
	SourceFiles *prometheus.CounterVec // labels: variable, outcome={read,skipped}

	// Scoring and persistence.
	ScorerStrategy   *prometheus.CounterVec // labels: strategy={model,formula,dhw}
	RecordsPersisted prometheus.Counter
	LatestRiskScore  prometheus.Gauge

	// Remote data provider metrics.
	RemoteRequests        *prometheus.CounterVec // labels: outcome={success,retry,error,breaker_open}
	RemoteRequestDuration prometheus.Histogram
	RemoteCache           *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RunDuration,
		m.PipelineRunning,
		m.SourceFiles,
		m.ScorerStrategy,
		m.RecordsPersisted,
		m.LatestRiskScore,
		m.RemoteRequests,
		m.RemoteRequestDuration,
		m.RemoteCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete job run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a job is executing, 0 otherwise.",
		}),
		SourceFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_files_total",
			Help:      "Source CSV files by variable and outcome.",
		}, []string{"variable", "outcome"}),
		ScorerStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_strategy_total",
			Help:      "Scored days by strategy.",
		}, []string{"strategy"}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Daily status rows written to the store.",
		}),
		LatestRiskScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_risk_score",
			Help:      "Risk score of the most recent persisted day.",
		}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Remote data provider requests by outcome.",
		}, []string{"outcome"}),
		RemoteRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Remote data provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RemoteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_cache_total",
			Help:      "Remote response cache lookups by result.",
		}, []string{"result"}),
	}
}
