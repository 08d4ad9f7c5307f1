package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/docker/client"
)

// newFakePool returns a pool whose sandboxes are never backed by a real
// container, so lifecycle behavior is testable without a docker daemon.
// creations counts factory invocations.
func newFakePool(t *testing.T, maxSize int) (*Pool, *atomic.Int32) {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("docker client: %v", err)
	}

	var creations atomic.Int32
	p := NewPool(DefaultConfig(), maxSize, nil)
	p.newSandbox = func(ctx context.Context) (*Sandbox, error) {
		creations.Add(1)
		return &Sandbox{config: p.config, cli: cli, logger: p.logger, running: true}, nil
	}
	return p, &creations
}

func TestPoolAcquireReusesReleased(t *testing.T) {
	p, creations := newFakePool(t, 2)
	defer p.Close()

	sb, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(sb)

	again, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if again != sb {
		t.Error("expected the released sandbox back")
	}
	if got := creations.Load(); got != 1 {
		t.Errorf("creations = %d, want 1", got)
	}
	p.Release(again)
}

func TestPoolAcquireQueuesWhenSaturated(t *testing.T) {
	p, creations := newFakePool(t, 1)
	defer p.Close()

	first, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	got := make(chan *Sandbox, 1)
	go func() {
		sb, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("queued Acquire: %v", err)
		}
		got <- sb
	}()

	select {
	case <-got:
		t.Fatal("Acquire returned while the pool was saturated")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(first)

	select {
	case sb := <-got:
		if sb != first {
			t.Error("queued Acquire should receive the released sandbox")
		}
		p.Release(sb)
	case <-time.After(time.Second):
		t.Fatal("queued Acquire never unblocked after Release")
	}

	if n := creations.Load(); n != 1 {
		t.Errorf("creations = %d, want 1", n)
	}
}

func TestPoolAcquireContextCanceledWhileQueued(t *testing.T) {
	p, _ := newFakePool(t, 1)
	defer p.Close()

	sb, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release(sb)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := p.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestPoolConcurrentAcquireBounded(t *testing.T) {
	const maxSize = 2
	p, creations := newFakePool(t, maxSize)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sb, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
			p.Release(sb)
		}()
	}
	wg.Wait()

	// All sandboxes survive their Release, so total creations equals the
	// peak concurrent count. It must never exceed the pool bound.
	if n := creations.Load(); n > maxSize {
		t.Errorf("creations = %d, want at most %d", n, maxSize)
	}
}

func TestPoolCloseUnblocksQueuedAcquire(t *testing.T) {
	p, _ := newFakePool(t, 1)

	sb, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	p.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("queued Acquire should fail after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("queued Acquire never unblocked after Close")
	}

	p.Release(sb)
}

func TestPoolAcquireAfterClose(t *testing.T) {
	p, _ := newFakePool(t, 1)
	p.Close()

	if _, err := p.Acquire(context.Background()); err == nil {
		t.Error("Acquire on a closed pool should fail")
	}
}

func TestPoolWarmup(t *testing.T) {
	p, creations := newFakePool(t, 3)
	defer p.Close()

	if err := p.Warmup(context.Background(), 2); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if got := p.Size(); got != 2 {
		t.Errorf("Size = %d, want 2", got)
	}
	if n := creations.Load(); n != 2 {
		t.Errorf("creations = %d, want 2", n)
	}

	sb, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if n := creations.Load(); n != 2 {
		t.Errorf("warm Acquire created a sandbox, creations = %d", n)
	}
	p.Release(sb)
}

func TestPoolWarmupClampsToMaxSize(t *testing.T) {
	p, creations := newFakePool(t, 2)
	defer p.Close()

	if err := p.Warmup(context.Background(), 10); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if n := creations.Load(); n != 2 {
		t.Errorf("creations = %d, want 2", n)
	}
}
