// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates the Prometheus instruments for one process.
type Collector struct {
	turnsTotal         *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	toolExecutions     *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	amadeusRequests    *prometheus.CounterVec
	amadeusDuration    *prometheus.HistogramVec
	llmRequests        *prometheus.CounterVec
	llmEmptyRetries    prometheus.Counter
	checkpointSaves    *prometheus.CounterVec
	checkpointFailures *prometheus.CounterVec
}

// NewCollector registers all instruments on the given registerer. Pass a
// fresh prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_steps_total",
			Help:      "Total graph steps executed, by node",
		}, []string{"node"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dialog_step_duration_seconds",
			Help:      "Graph step duration in seconds, by node",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Total tool executions, by tool and outcome",
		}, []string{"tool", "outcome"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_execution_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		amadeusRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amadeus_requests_total",
			Help:      "Total Amadeus API requests, by endpoint and status",
		}, []string{"endpoint", "status"}),
		amadeusDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "amadeus_request_duration_seconds",
			Help:      "Amadeus API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total LLM completion requests, by outcome",
		}, []string{"outcome"}),
		llmEmptyRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_empty_reply_retries_total",
			Help:      "Retries triggered by empty LLM completions",
		}),
		checkpointSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_saves_total",
			Help:      "Checkpoints persisted, by backend",
		}, []string{"backend"}),
		checkpointFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_failures_total",
			Help:      "Checkpoint persistence failures, by backend",
		}, []string{"backend"}),
	}
}

// ObserveStep records one executed graph step.
func (c *Collector) ObserveStep(node string, d time.Duration) {
	c.turnsTotal.WithLabelValues(node).Inc()
	c.stepDuration.WithLabelValues(node).Observe(d.Seconds())
}

// ObserveTool records one tool execution.
func (c *Collector) ObserveTool(tool, outcome string, d time.Duration) {
	c.toolExecutions.WithLabelValues(tool, outcome).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveAmadeusRequest records one upstream Amadeus call.
func (c *Collector) ObserveAmadeusRequest(endpoint, status string, d time.Duration) {
	c.amadeusRequests.WithLabelValues(endpoint, status).Inc()
	c.amadeusDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveLLMRequest records one completion attempt outcome.
func (c *Collector) ObserveLLMRequest(outcome string) {
	c.llmRequests.WithLabelValues(outcome).Inc()
}

// ObserveEmptyRetry records one retry caused by a degenerate empty reply.
func (c *Collector) ObserveEmptyRetry() {
	c.llmEmptyRetries.Inc()
}

// ObserveCheckpointSave records a checkpoint write.
func (c *Collector) ObserveCheckpointSave(backend string, err error) {
	if err != nil {
		c.checkpointFailures.WithLabelValues(backend).Inc()
		return
	}
	c.checkpointSaves.WithLabelValues(backend).Inc()
}
