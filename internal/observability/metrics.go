package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the consensus engine and
// daemon.
type Metrics struct {
	registry       *prometheus.Registry
	Runs           *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	Rounds         prometheus.Histogram
	ModelRequests  *prometheus.CounterVec
	ModelFailures  *prometheus.CounterVec
	RetryAttempts  *prometheus.CounterVec
	ActiveStreams  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
	ContextTrims   prometheus.Counter
	QuorumFailures prometheus.Counter
}

// NewMetrics constructs a metrics registry with consensus collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aicx_runs_total",
		Help: "Completed consensus runs by stop reason",
	}, []string{"stop_reason"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aicx_run_duration_seconds",
		Help:    "Consensus run duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stop_reason"})

	rounds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aicx_run_rounds",
		Help:    "Rounds completed per run",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aicx_model_requests_total",
		Help: "Model requests by role and model",
	}, []string{"role", "model"})

	fails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aicx_model_failures_total",
		Help: "Model failures by role, model, and error kind",
	}, []string{"role", "model", "kind"})

	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aicx_retry_attempts_total",
		Help: "Retry attempts by provider",
	}, []string{"provider"})

	streams := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aicx_transport_active_streams",
		Help: "Active streaming runs by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aicx_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	trims := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aicx_context_truncations_total",
		Help: "Rounds dropped to fit the context budget",
	})

	quorum := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aicx_quorum_failures_total",
		Help: "Runs aborted because a round fell below quorum",
	})

	reg.MustRegister(runs, durs, rounds, reqs, fails, retries, streams, trErrors, trims, quorum)

	return &Metrics{
		registry:       reg,
		Runs:           runs,
		RunDuration:    durs,
		Rounds:         rounds,
		ModelRequests:  reqs,
		ModelFailures:  fails,
		RetryAttempts:  retries,
		ActiveStreams:  streams,
		TransportErrs:  trErrors,
		ContextTrims:   trims,
		QuorumFailures: quorum,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a completed run.
func (m *Metrics) RecordRun(stopReason string, duration time.Duration, rounds int) {
	if m == nil {
		return
	}
	if stopReason == "" {
		stopReason = "unknown"
	}
	m.Runs.WithLabelValues(stopReason).Inc()
	m.RunDuration.WithLabelValues(stopReason).Observe(duration.Seconds())
	m.Rounds.Observe(float64(rounds))
}

// RecordModelRequest increments the request counter for a role/model pair.
func (m *Metrics) RecordModelRequest(role, model string) {
	if m == nil {
		return
	}
	m.ModelRequests.WithLabelValues(orUnknown(role), orUnknown(model)).Inc()
}

// RecordModelFailure increments the failure counter for a role/model pair.
func (m *Metrics) RecordModelFailure(role, model, kind string) {
	if m == nil {
		return
	}
	m.ModelFailures.WithLabelValues(orUnknown(role), orUnknown(model), orUnknown(kind)).Inc()
}

// RecordRetry increments the retry counter for a provider.
func (m *Metrics) RecordRetry(provider string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(orUnknown(provider)).Inc()
}

// IncActiveStreams increments the active stream gauge.
func (m *Metrics) IncActiveStreams(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(orUnknown(transport)).Inc()
}

// DecActiveStreams decrements the active stream gauge.
func (m *Metrics) DecActiveStreams(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(orUnknown(transport)).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	m.TransportErrs.WithLabelValues(orUnknown(transport), orUnknown(reason)).Inc()
}

// RecordContextTruncation counts rounds dropped by the budget.
func (m *Metrics) RecordContextTruncation(dropped int) {
	if m == nil || dropped <= 0 {
		return
	}
	m.ContextTrims.Add(float64(dropped))
}

// RecordQuorumFailure counts a run aborted below quorum.
func (m *Metrics) RecordQuorumFailure() {
	if m == nil {
		return
	}
	m.QuorumFailures.Inc()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
