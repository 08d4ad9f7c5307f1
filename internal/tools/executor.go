package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/virelia/sandrun/internal/metrics"
)

// DefaultCacheTTL is how long successful tool results stay reusable.
const DefaultCacheTTL = 5 * time.Minute

// DefaultBatchParallelism caps concurrent handlers in a batch call.
const DefaultBatchParallelism = 4

// Executor runs registered tools: it validates arguments, serves repeat
// calls from a TTL cache, coalesces concurrent identical calls, and runs
// batches under a bounded worker limit.
type Executor struct {
	registry    *Registry
	cache       *resultCache
	flight      singleflight.Group
	parallelism int64
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCacheTTL overrides the result cache TTL.
func WithCacheTTL(ttl time.Duration) ExecutorOption {
	return func(e *Executor) {
		if ttl > 0 {
			e.cache = newResultCache(ttl)
		}
	}
}

// WithBatchParallelism overrides the batch worker limit.
func WithBatchParallelism(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = int64(n)
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) ExecutorOption {
	return func(e *Executor) { e.metrics = c }
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		registry:    registry,
		cache:       newResultCache(DefaultCacheTTL),
		parallelism: DefaultBatchParallelism,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Call invokes a tool synchronously. Identical calls within the TTL are
// served from the cache without touching the handler; concurrent identical
// calls coalesce onto one in-flight execution. Handler failures are
// returned and never cached.
func (e *Executor) Call(ctx context.Context, name string, args any) (any, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}
	normalized, err := normalizeArgs(def, args)
	if err != nil {
		return nil, err
	}

	key, err := cacheKey(name, normalized)
	if err != nil {
		// Unserializable arguments cannot be cached or coalesced; run
		// the call directly rather than fail it.
		e.logger.Warn("cache unavailable for call, executing directly",
			zap.String("tool", name), zap.Error(err))
		return e.invoke(ctx, def, normalized)
	}

	if value, ok := e.cache.get(key); ok {
		e.metrics.IncCacheHit()
		e.metrics.ObserveToolCall(name, "cached", 0)
		return value, nil
	}
	e.metrics.IncCacheMiss()

	// The in-flight execution is detached from any one caller's context:
	// a coalesced group must survive its first caller cancelling. Each
	// waiter still honors its own ctx below.
	ch := e.flight.DoChan(key, func() (any, error) {
		// Another goroutine may have populated the cache while this one
		// waited on the flight group.
		if value, ok := e.cache.get(key); ok {
			return value, nil
		}
		value, err := e.invoke(context.WithoutCancel(ctx), def, normalized)
		if err != nil {
			return nil, err
		}
		e.cache.set(key, value)
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// invoke runs the handler and records the outcome. A panicking handler is
// contained and reported as a tool error, never a host crash.
func (e *Executor) invoke(ctx context.Context, def Definition, args map[string]any) (any, error) {
	start := time.Now()
	value, err := e.safeCall(ctx, def, args)
	elapsed := time.Since(start)

	if err != nil {
		e.metrics.ObserveToolCall(def.Name, "error", elapsed)
		e.logger.Debug("tool failed",
			zap.String("tool", def.Name),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return nil, ExecutionError{Tool: def.Name, Err: err}
	}
	e.metrics.ObserveToolCall(def.Name, "success", elapsed)
	return value, nil
}

func (e *Executor) safeCall(ctx context.Context, def Definition, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return def.Handler(ctx, args)
}

// Future is the handle for an asynchronous call.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  any
	err    error
}

// Done is closed when the call finishes or is cancelled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until the call finishes and returns its outcome.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Cancel aborts an in-flight call and blocks until the future has
// resolved, so the call's resources are settled by the time it returns.
// Cancel after completion is a no-op.
func (f *Future) Cancel() {
	f.cancel()
	<-f.done
}

// CallAsync starts a call in the background and returns a handle the caller
// can wait on or cancel.
func (e *Executor) CallAsync(ctx context.Context, name string, args any) *Future {
	callCtx, cancel := context.WithCancel(ctx)
	f := &Future{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(f.done)
		defer cancel()
		f.value, f.err = e.Call(callCtx, name, args)
		if f.err == nil && callCtx.Err() != nil {
			f.value, f.err = nil, callCtx.Err()
		}
	}()
	return f
}

// BatchCall is one entry of a batch invocation.
type BatchCall struct {
	Name string
	Args any
}

// BatchResult pairs one batch entry's outcome with its input position.
type BatchResult struct {
	Value any
	Err   error
}

// CallBatch runs calls concurrently, at most the configured parallelism at
// once; excess entries wait for a free slot. Results are returned in input
// order regardless of completion order.
func (e *Executor) CallBatch(ctx context.Context, calls []BatchCall) []BatchResult {
	results := make([]BatchResult, len(calls))
	sem := semaphore.NewWeighted(e.parallelism)

	var pending sync.WaitGroup
	for i, call := range calls {
		pending.Add(1)
		e.metrics.AddBatchQueued(1)
		go func(i int, call BatchCall) {
			defer pending.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				e.metrics.AddBatchQueued(-1)
				results[i] = BatchResult{Err: err}
				return
			}
			e.metrics.AddBatchQueued(-1)
			defer sem.Release(1)

			value, err := e.Call(ctx, call.Name, call.Args)
			results[i] = BatchResult{Value: value, Err: err}
		}(i, call)
	}
	pending.Wait()
	return results
}

// Stats returns a snapshot of cache activity.
func (e *Executor) Stats() CacheStats {
	return e.cache.stats()
}

// Invalidate drops the cached result for one exact call.
func (e *Executor) Invalidate(name string, args any) error {
	def, err := e.registry.Get(name)
	if err != nil {
		return err
	}
	normalized, err := normalizeArgs(def, args)
	if err != nil {
		return err
	}
	key, err := cacheKey(name, normalized)
	if err != nil {
		return err
	}
	e.cache.invalidate(key)
	return nil
}

// ClearCache drops every cached result.
func (e *Executor) ClearCache() {
	e.cache.clear()
}
