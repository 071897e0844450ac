package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hearth"

// Stream outcomes recorded by the cancellation stage.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
	OutcomeFailed    = "failed"
)

// Metrics holds the service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	streams            *prometheus.CounterVec
	stopRequests       prometheus.Counter
	memoryFailures     *prometheus.CounterVec
	retrievalFallbacks *prometheus.CounterVec
	tokens             *prometheus.CounterVec
	prunedSessions     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "streams_total",
			Help:      "Streaming turns by terminal outcome.",
		}, []string{"outcome"}),
		stopRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stop_requests_total",
			Help:      "Stop requests that found an active stream.",
		}),
		memoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "memory_failures_total",
			Help:      "Swallowed conversation memory failures by operation.",
		}, []string{"op"}),
		retrievalFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retrieval_fallbacks_total",
			Help:      "Prompts answered from general knowledge by reason.",
		}, []string{"reason"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by aggregated responses.",
		}, []string{"model", "kind"}),
		prunedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pruned_sessions_total",
			Help:      "Session index entries removed by expiry sweeps.",
		}),
	}

	reg.MustRegister(
		m.streams,
		m.stopRequests,
		m.memoryFailures,
		m.retrievalFallbacks,
		m.tokens,
		m.prunedSessions,
	)

	return m
}

// StreamFinished records the outcome of one streaming turn.
func (m *Metrics) StreamFinished(outcome string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(outcome).Inc()
}

// StopRequested records a stop request that fired a signal.
func (m *Metrics) StopRequested() {
	if m == nil {
		return
	}
	m.stopRequests.Inc()
}

// MemoryFailed records a swallowed memory failure for op ("load" or "save").
func (m *Metrics) MemoryFailed(op string) {
	if m == nil {
		return
	}
	m.memoryFailures.WithLabelValues(op).Inc()
}

// RetrievalFellBack records a retrieval fallback for reason ("empty" or "error").
func (m *Metrics) RetrievalFellBack(reason string) {
	if m == nil {
		return
	}
	m.retrievalFallbacks.WithLabelValues(reason).Inc()
}

// TokensUsed adds prompt and completion token counts for model.
func (m *Metrics) TokensUsed(model string, prompt, completion int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	m.tokens.WithLabelValues(model, "completion").Add(float64(completion))
}

// SessionsPruned adds n removed index entries.
func (m *Metrics) SessionsPruned(n int) {
	if m == nil {
		return
	}
	m.prunedSessions.Add(float64(n))
}
