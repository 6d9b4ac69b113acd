package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the orchestrator's Prometheus metrics: request flow,
// classification outcomes, model invocations, tool executions, credential
// rotations, and fallback advances.
type Metrics struct {
	// RequestCounter counts agent requests.
	// Labels: task_type, status (success|error)
	RequestCounter *prometheus.CounterVec

	// ClassificationCounter counts task classifications.
	// Labels: task_type, method (model|keyword)
	ClassificationCounter *prometheus.CounterVec

	// LLMRequestDuration measures model invocation latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model invocations.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// LoopIterations observes how many iterations agentic loops run.
	// Labels: task_type
	LoopIterations *prometheus.HistogramVec

	// CredentialRotations counts rate-limit-driven credential rotations.
	// Labels: provider
	CredentialRotations *prometheus.CounterVec

	// FallbackAdvances counts cross-provider fallback switches.
	// Labels: task_type, from_provider, to_provider
	FallbackAdvances *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with a new registry,
// returning both. Use the returned registry for the /metrics handler.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		RequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_requests_total",
			Help: "Agent requests by task type and status.",
		}, []string{"task_type", "status"}),

		ClassificationCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_classifications_total",
			Help: "Task classifications by resulting type and method.",
		}, []string{"task_type", "method"}),

		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quasar_llm_request_duration_seconds",
			Help:    "Model invocation latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_llm_requests_total",
			Help: "Model invocations by provider, model, and status.",
		}, []string{"provider", "model", "status"}),

		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_tool_executions_total",
			Help: "Tool invocations by name and status.",
		}, []string{"tool_name", "status"}),

		ToolExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quasar_tool_execution_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 180},
		}, []string{"tool_name"}),

		LoopIterations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quasar_loop_iterations",
			Help:    "Iterations per agentic loop.",
			Buckets: []float64{1, 2, 3, 5, 10, 15, 20, 30},
		}, []string{"task_type"}),

		CredentialRotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_credential_rotations_total",
			Help: "Rate-limit-driven credential rotations by provider.",
		}, []string{"provider"}),

		FallbackAdvances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quasar_fallback_advances_total",
			Help: "Cross-provider fallback switches.",
		}, []string{"task_type", "from_provider", "to_provider"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quasar_http_request_duration_seconds",
			Help:    "HTTP API request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path", "status_code"}),
	}

	return m, registry
}

// RecordRequest records one agent request outcome.
func (m *Metrics) RecordRequest(taskType string, success bool) {
	m.RequestCounter.WithLabelValues(taskType, statusLabel(success)).Inc()
}

// RecordClassification records a classification and how it was produced.
func (m *Metrics) RecordClassification(taskType, method string) {
	m.ClassificationCounter.WithLabelValues(taskType, method).Inc()
}

// RecordLLMRequest records one model invocation.
func (m *Metrics) RecordLLMRequest(provider, model string, success bool, duration time.Duration) {
	m.LLMRequestCounter.WithLabelValues(provider, model, statusLabel(success)).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordToolExecution records one tool dispatch.
func (m *Metrics) RecordToolExecution(toolName string, success bool, duration time.Duration) {
	m.ToolExecutionCounter.WithLabelValues(toolName, statusLabel(success)).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordLoopIterations records how many iterations a loop ran.
func (m *Metrics) RecordLoopIterations(taskType string, iterations int) {
	m.LoopIterations.WithLabelValues(taskType).Observe(float64(iterations))
}

// RecordCredentialRotation records one credential rotation.
func (m *Metrics) RecordCredentialRotation(provider string) {
	m.CredentialRotations.WithLabelValues(provider).Inc()
}

// RecordFallbackAdvance records a cross-provider switch.
func (m *Metrics) RecordFallbackAdvance(taskType, from, to string) {
	m.FallbackAdvances.WithLabelValues(taskType, from, to).Inc()
}

// RecordHTTPRequest records HTTP handler latency.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
