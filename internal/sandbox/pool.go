package sandbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pool maintains warm sandbox containers so runs skip container cold-start.
// Excess demand queues on Acquire rather than growing past maxSize.
type Pool struct {
	config    Config
	logger    *zap.Logger
	available chan *Sandbox
	maxSize   int
	created   atomic.Int32
	mu        sync.Mutex
	closed    atomic.Bool

	// newSandbox builds and starts one sandbox. Tests swap it out.
	newSandbox func(ctx context.Context) (*Sandbox, error)
}

// NewPool creates a pool that will hold at most maxSize sandboxes for cfg.
func NewPool(cfg Config, maxSize int, logger *zap.Logger) *Pool {
	if maxSize <= 0 {
		maxSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		config:    cfg,
		logger:    logger,
		available: make(chan *Sandbox, maxSize),
		maxSize:   maxSize,
	}
	p.newSandbox = p.startSandbox
	return p
}

// reserveSlot claims one of the maxSize creation slots. The slot is held
// until the sandbox it backs is closed, so the pool can never over-create
// no matter how many Acquires race.
func (p *Pool) reserveSlot() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(p.created.Load()) >= p.maxSize {
		return false
	}
	p.created.Add(1)
	return true
}

// Warmup pre-starts count sandboxes so the first runs skip cold-start.
func (p *Pool) Warmup(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	if count > p.maxSize {
		count = p.maxSize
	}

	var wg sync.WaitGroup
	errCh := make(chan error, count)

	for i := 0; i < count; i++ {
		if !p.reserveSlot() {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sb, err := p.createSandbox(ctx)
			if err != nil {
				errCh <- err
				return
			}
			if !p.tryPut(sb) {
				_ = sb.Close()
				p.created.Add(-1)
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// Acquire returns a running sandbox, creating one if the pool has room.
// When the pool is saturated, Acquire blocks until a sandbox is released or
// ctx is done; callers thereby queue instead of spawning unbounded isolates.
func (p *Pool) Acquire(ctx context.Context) (*Sandbox, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("pool is closed")
	}

	select {
	case sb, ok := <-p.available:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		if sb.IsRunning() {
			return sb, nil
		}
		_ = sb.Close()
		p.created.Add(-1)
	default:
	}

	if p.reserveSlot() {
		return p.createSandbox(ctx)
	}

	// Saturated: wait for a release.
	select {
	case sb, ok := <-p.available:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		if sb.IsRunning() {
			return sb, nil
		}
		// The dead sandbox's slot transfers to its replacement.
		_ = sb.Close()
		return p.createSandbox(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// createSandbox builds one sandbox against an already-reserved slot and
// returns the slot on failure.
func (p *Pool) createSandbox(ctx context.Context) (*Sandbox, error) {
	sb, err := p.newSandbox(ctx)
	if err != nil {
		p.created.Add(-1)
		return nil, err
	}
	return sb, nil
}

func (p *Pool) startSandbox(ctx context.Context) (*Sandbox, error) {
	sb, err := New(p.config, p.logger)
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	if err := sb.Start(ctx); err != nil {
		_ = sb.Close()
		return nil, fmt.Errorf("start sandbox: %w", err)
	}
	return sb, nil
}

// Release returns a sandbox to the pool, closing it if the pool is full,
// closed, or the sandbox stopped running.
func (p *Pool) Release(sb *Sandbox) {
	if sb == nil {
		return
	}
	if p.closed.Load() || !sb.IsRunning() {
		_ = sb.Close()
		p.created.Add(-1)
		return
	}
	if !p.tryPut(sb) {
		_ = sb.Close()
		p.created.Add(-1)
	}
}

// tryPut hands a sandbox to the idle channel, reporting false when the pool
// is closed or full. The send happens under the mutex so it cannot race a
// concurrent Close of the channel.
func (p *Pool) tryPut(sb *Sandbox) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return false
	}
	select {
	case p.available <- sb:
		return true
	default:
		return false
	}
}

// ReleaseWithReset replaces the sandbox's container before returning it to
// the pool, guaranteeing the next run sees no leftover state. Used after a
// timed-out run, where the exec'd process may still be alive inside.
func (p *Pool) ReleaseWithReset(ctx context.Context, sb *Sandbox) {
	if sb == nil {
		return
	}
	if p.closed.Load() {
		_ = sb.Close()
		p.created.Add(-1)
		return
	}
	if err := sb.Reset(ctx); err != nil {
		p.logger.Warn("sandbox reset failed, discarding", zap.Error(err))
		_ = sb.Close()
		p.created.Add(-1)
		return
	}
	p.Release(sb)
}

// Size returns the number of idle sandboxes currently available.
func (p *Pool) Size() int {
	return len(p.available)
}

// Close shuts down all pooled sandboxes. Sandboxes still checked out are
// closed by their eventual Release.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	close(p.available)
	p.mu.Unlock()
	for sb := range p.available {
		_ = sb.Close()
		p.created.Add(-1)
	}
}
