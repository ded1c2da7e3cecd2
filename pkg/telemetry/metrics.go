package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for a reconciliation run.
// A nil *Metrics, or one created with metrics disabled, records nothing.
type Metrics struct {
	config MetricsConfig

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcRetries  *prometheus.CounterVec

	// Reconcile metrics
	ensureOutcomes *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec

	// Readiness metrics
	readinessPhases   *prometheus.CounterVec
	readinessDuration *prometheus.HistogramVec

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRunTime   prometheus.Gauge

	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_calls_total",
				Help:      "Total number of JSON-RPC calls by method and result",
			},
			[]string{"method", "result"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_call_duration_seconds",
				Help:      "Duration of JSON-RPC calls including retries",
				Buckets:   buckets,
			},
			[]string{"method"},
		),
		rpcRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_retries_total",
				Help:      "Total number of transport retries by method",
			},
			[]string{"method"},
		),

		ensureOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ensure_outcomes_total",
				Help:      "Total number of ensure operations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of ensure steps by kind",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),

		readinessPhases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readiness_phases_total",
				Help:      "Total number of readiness phases by phase and result",
			},
			[]string{"phase", "result"},
		),
		readinessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "readiness_phase_duration_seconds",
				Help:      "Time spent waiting in each readiness phase",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
			},
			[]string{"phase"},
		),

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of reconciliation runs by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of reconciliation runs",
				Buckets:   buckets,
			},
		),
		lastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last completed run",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of fatal errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.rpcCalls,
		m.rpcDuration,
		m.rpcRetries,
		m.ensureOutcomes,
		m.stepDuration,
		m.readinessPhases,
		m.readinessDuration,
		m.runsCompleted,
		m.runDuration,
		m.lastRunTime,
		m.errorsByClass,
	)

	return m
}

// RecordRPCCall records a finished RPC call, result is "ok" or an error class.
func (m *Metrics) RecordRPCCall(method, result string, duration time.Duration) {
	if m == nil || m.rpcCalls == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, result).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRPCRetry records one transport retry.
func (m *Metrics) RecordRPCRetry(method string) {
	if m == nil || m.rpcRetries == nil {
		return
	}
	m.rpcRetries.WithLabelValues(method).Inc()
}

// RecordEnsure records the outcome of an ensure step.
func (m *Metrics) RecordEnsure(kind, outcome string, duration time.Duration) {
	if m == nil || m.ensureOutcomes == nil {
		return
	}
	m.ensureOutcomes.WithLabelValues(kind, outcome).Inc()
	m.stepDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordReadinessPhase records a readiness phase result.
func (m *Metrics) RecordReadinessPhase(phase string, ok bool, duration time.Duration) {
	if m == nil || m.readinessPhases == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "timeout"
	}
	m.readinessPhases.WithLabelValues(phase, result).Inc()
	m.readinessDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m == nil || m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTime.SetToCurrentTime()
}

// RecordError records a fatal error by class.
func (m *Metrics) RecordError(class string) {
	if m == nil || m.errorsByClass == nil {
		return
	}
	if class == "" {
		class = "unclassified"
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteToTextfile writes all metrics in the text exposition format to path,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil || m.registry == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
