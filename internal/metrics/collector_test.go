package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("sandrun", reg)

	c.ObserveExecution("python", "success", 25*time.Millisecond)
	c.ObserveExecution("python", "success", 30*time.Millisecond)
	c.ObserveExecution("lua", "timeout", time.Second)
	c.IncRiskBlock("shell")
	c.ObserveToolCall("add", "success", time.Millisecond)
	c.IncCacheHit()
	c.IncCacheMiss()
	c.IncCacheMiss()
	c.AddBatchQueued(3)
	c.AddBatchQueued(-3)

	if got := testutil.ToFloat64(c.executionsTotal.WithLabelValues("python", "success")); got != 2 {
		t.Errorf("executions{python,success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.riskBlocksTotal.WithLabelValues("shell")); got != 1 {
		t.Errorf("risk_blocks{shell} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cacheMissesTotal); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.batchQueueDepth); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	// Must not panic.
	c.ObserveExecution("python", "success", time.Millisecond)
	c.IncRiskBlock("python")
	c.ObserveToolCall("add", "error", time.Millisecond)
	c.IncCacheHit()
	c.IncCacheMiss()
	c.AddBatchQueued(1)
}
