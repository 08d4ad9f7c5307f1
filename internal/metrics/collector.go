// Package metrics collects prometheus metrics for executions, policy
// decisions and the tool cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns every metric the module exports. A nil *Collector is valid
// and records nothing, so instrumentation points never need nil checks.
type Collector struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	riskBlocksTotal   *prometheus.CounterVec

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	batchQueueDepth  prometheus.Gauge
}

// NewCollector registers the metric set with reg. Passing nil uses the
// default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		executionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Code executions by language and outcome",
			},
			[]string{"language", "status"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Wall-clock time spent inside a runtime",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"language"},
		),
		riskBlocksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_blocks_total",
				Help:      "Snippets rejected by the risk analyzer",
			},
			[]string{"language"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool invocations by tool name and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool handler latency",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"tool"},
		),
		cacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_cache_hits_total",
			Help:      "Tool results served from the cache",
		}),
		cacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_cache_misses_total",
			Help:      "Tool calls that missed the cache",
		}),
		batchQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tool_batch_queue_depth",
			Help:      "Tool batch calls waiting for a worker slot",
		}),
	}
}

// ObserveExecution records one finished code execution.
func (c *Collector) ObserveExecution(language, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(language, status).Inc()
	c.executionDuration.WithLabelValues(language).Observe(d.Seconds())
}

// IncRiskBlock records a snippet stopped before it ran.
func (c *Collector) IncRiskBlock(language string) {
	if c == nil {
		return
	}
	c.riskBlocksTotal.WithLabelValues(language).Inc()
}

// ObserveToolCall records one tool invocation.
func (c *Collector) ObserveToolCall(tool, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// IncCacheHit records a tool result served from the cache.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.cacheHitsTotal.Inc()
}

// IncCacheMiss records a tool call that went to its handler.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.cacheMissesTotal.Inc()
}

// AddBatchQueued adjusts the number of batch calls waiting for a worker.
func (c *Collector) AddBatchQueued(delta int) {
	if c == nil {
		return
	}
	c.batchQueueDepth.Add(float64(delta))
}
