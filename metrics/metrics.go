// Package metrics exposes Prometheus collectors for orchestrator activity:
// model calls, tool calls and tool-dispatch steps per conversation turn.
//
// A nil *Collector is valid and records nothing, so callers never need to
// guard their observations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tool call outcomes used as label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Collector groups the orchestrator's metrics.
type Collector struct {
	modelCalls   *prometheus.CounterVec
	modelLatency *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	steps        prometheus.Histogram
}

// Options configure a Collector.
type Options struct {
	Namespace string
	Buckets   []float64
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{Namespace: "agentloop", Buckets: prometheus.DefBuckets}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Collector{
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "model_calls_total",
			Help:      "Model provider calls by model and result.",
		}, []string{"model", "result"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Model provider call latency.",
			Buckets:   opts.Buckets,
		}, []string{"model"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   opts.Buckets,
		}, []string{"tool"}),
		steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "steps_per_turn",
			Help:      "Tool-dispatch steps consumed per conversation turn.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
	}

	for _, col := range []prometheus.Collector{c.modelCalls, c.modelLatency, c.toolCalls, c.toolLatency, c.steps} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveModelCall records one provider call.
func (c *Collector) ObserveModelCall(model string, dur time.Duration, err error) {
	if c == nil {
		return
	}
	result := OutcomeOK
	if err != nil {
		result = OutcomeError
	}
	c.modelCalls.WithLabelValues(model, result).Inc()
	c.modelLatency.WithLabelValues(model).Observe(dur.Seconds())
}

// ObserveToolCall records one tool invocation.
func (c *Collector) ObserveToolCall(tool, outcome string, dur time.Duration) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
	c.toolLatency.WithLabelValues(tool).Observe(dur.Seconds())
}

// ObserveSteps records how many tool-dispatch steps a turn consumed.
func (c *Collector) ObserveSteps(n int) {
	if c == nil {
		return
	}
	c.steps.Observe(float64(n))
}
