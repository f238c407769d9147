package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for application metrics.
//
// Built on Prometheus, it tracks:
//   - Chat turn counts and latencies
//   - Stream events emitted to clients, by event type
//   - LLM request performance by provider and model
//   - Tool execution outcomes and normalized fault classes
//   - Conversation repair activity
//   - Active session counts
type Metrics struct {
	// TurnCounter counts chat turns.
	// Labels: mode (sync|stream), status (success|error)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures end-to-end chat turn latency in seconds.
	// Labels: mode (sync|stream)
	TurnDuration *prometheus.HistogramVec

	// StreamEventCounter counts events emitted to streaming clients.
	// Labels: type (step|thinking|tool_call|tool_result|final)
	StreamEventCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (openai|bedrock), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolFaultCounter counts normalized tool faults.
	// Labels: tool_name, class (invalid_request|access_denied|not_found|server_error|generic)
	ToolFaultCounter *prometheus.CounterVec

	// RepairCounter counts conversation state repairs.
	// Labels: outcome (repaired|clean)
	RepairCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking registered sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry. Call once at application startup; the /metrics endpoint serves
// the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizchat_turns_total",
				Help: "Total number of chat turns by mode and status",
			},
			[]string{"mode", "status"},
		),

		TurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vizchat_turn_duration_seconds",
				Help:    "End-to-end chat turn latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),

		StreamEventCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizchat_stream_events_total",
				Help: "Total number of stream events emitted by type",
			},
			[]string{"type"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vizchat_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizchat_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizchat_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolFaultCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizchat_tool_faults_total",
				Help: "Total number of normalized tool faults by class",
			},
			[]string{"tool_name", "class"},
		),

		RepairCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizchat_session_repairs_total",
				Help: "Total number of conversation state repair passes by outcome",
			},
			[]string{"outcome"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vizchat_active_sessions",
				Help: "Current number of registered sessions",
			},
		),
	}
}

// RecordTurn records a completed chat turn.
func (m *Metrics) RecordTurn(mode, status string, durationSeconds float64) {
	m.TurnCounter.WithLabelValues(mode, status).Inc()
	m.TurnDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordStreamEvent increments the stream event counter for an event type.
func (m *Metrics) RecordStreamEvent(eventType string) {
	m.StreamEventCounter.WithLabelValues(eventType).Inc()
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordToolExecution records a tool invocation outcome.
func (m *Metrics) RecordToolExecution(toolName, status string) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
}

// RecordToolFault records a normalized tool fault by class.
func (m *Metrics) RecordToolFault(toolName, class string) {
	m.ToolFaultCounter.WithLabelValues(toolName, class).Inc()
}

// RecordRepair records a repair pass. Outcome is "repaired" when orphaned
// tool calls were found and "clean" otherwise.
func (m *Metrics) RecordRepair(repaired bool) {
	outcome := "clean"
	if repaired {
		outcome = "repaired"
	}
	m.RepairCounter.WithLabelValues(outcome).Inc()
}

// SessionRegistered increments the active session gauge.
func (m *Metrics) SessionRegistered() {
	m.ActiveSessions.Inc()
}
