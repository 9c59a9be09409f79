package queueengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepingExecutor(d time.Duration) Executor {
	return func(ctx context.Context, payload any) (any, error) {
		select {
		case <-time.After(d):
			return payload, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// S1 — Serial execution within one target.
func TestSerialExecutionOrderAndTiming(t *testing.T) {
	engine := New(Limits{TimeoutMs: 5000, MaxQueue: 10, MaxInflight: 1})

	var mu sync.Mutex
	var order []int
	results := make([]Outcome, 3)
	errs := make([]error, 3)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := engine.Enqueue("target-A", i, func(ctx context.Context, payload any) (any, error) {
				mu.Lock()
				order = append(order, payload.(int))
				mu.Unlock()
				time.Sleep(50 * time.Millisecond)
				return payload, nil
			})
			results[i] = out
			errs[i] = err
		}(i)
		time.Sleep(5 * time.Millisecond) // preserve submission order
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.InDelta(t, 0, results[0].QueueWaitMs, 30)
	assert.InDelta(t, 50, results[1].QueueWaitMs, 30)
	assert.InDelta(t, 100, results[2].QueueWaitMs, 30)
}

// S2 — Admission overflow.
func TestAdmissionOverflowReturnsQueueFull(t *testing.T) {
	engine := New(Limits{TimeoutMs: 5000, MaxQueue: 3, MaxInflight: 1})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Enqueue("target-A", i, sleepingExecutor(200*time.Millisecond))
			errs[i] = err
		}(i)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	fullCount := 0
	for _, err := range errs {
		if err == ErrQueueFull {
			fullCount++
		}
	}
	assert.Equal(t, 1, fullCount)
}

// S3 — Waiting timeout, both phases.
func TestTimeoutWhileWaitingAndWhileExecuting(t *testing.T) {
	engine := New(Limits{TimeoutMs: 100, MaxQueue: 5, MaxInflight: 1})

	var wg sync.WaitGroup
	var err1, err2 error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err1 = engine.Enqueue("target-A", "first", sleepingExecutor(300*time.Millisecond))
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, err2 = engine.Enqueue("target-A", "second", sleepingExecutor(300*time.Millisecond))
	}()
	wg.Wait()

	assert.ErrorIs(t, err1, ErrTimeout)
	assert.ErrorIs(t, err2, ErrTimeout)
}

// S4 — Target isolation.
func TestTargetIsolation(t *testing.T) {
	engine := New(Limits{TimeoutMs: 5000, MaxQueue: 1, MaxInflight: 1})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		engine.Enqueue("target-A", 1, sleepingExecutor(200*time.Millisecond))
	}()
	go func() {
		defer wg.Done()
		engine.Enqueue("target-A", 2, sleepingExecutor(200*time.Millisecond))
	}()
	time.Sleep(5 * time.Millisecond)

	var outB Outcome
	var errB error
	go func() {
		defer wg.Done()
		outB, errB = engine.Enqueue("target-B", 3, sleepingExecutor(10*time.Millisecond))
	}()
	wg.Wait()

	require.NoError(t, errB)
	assert.InDelta(t, 0, outB.QueueWaitMs, 20)
}

// S8 — Shutdown cancels pending.
func TestShutdownCancelsAllPending(t *testing.T) {
	engine := New(Limits{TimeoutMs: 5000, MaxQueue: 5, MaxInflight: 1})

	var signalled int32
	errs := make([]error, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Enqueue("target-A", i, func(ctx context.Context, payload any) (any, error) {
				select {
				case <-time.After(time.Second):
					return payload, nil
				case <-ctx.Done():
					atomic.AddInt32(&signalled, 1)
					return nil, ctx.Err()
				}
			})
			errs[i] = err
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	engine.Shutdown()
	wg.Wait()

	for _, err := range errs {
		assert.Error(t, err)
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&signalled), int32(1))
}

func TestEnqueueAfterShutdownRefused(t *testing.T) {
	engine := New(Limits{TimeoutMs: 1000, MaxQueue: 5, MaxInflight: 1})
	engine.Shutdown()

	_, err := engine.Enqueue("target-A", "x", func(ctx context.Context, payload any) (any, error) {
		return payload, nil
	})
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestUpstreamErrorIsCarriedThrough(t *testing.T) {
	engine := New(Limits{TimeoutMs: 1000, MaxQueue: 5, MaxInflight: 1})
	boom := assert.AnError

	_, err := engine.Enqueue("target-A", nil, func(ctx context.Context, payload any) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDepthAndInflightAccessors(t *testing.T) {
	engine := New(Limits{TimeoutMs: 1000, MaxQueue: 5, MaxInflight: 1})
	assert.Equal(t, 0, engine.Depth("unknown"))
	assert.Equal(t, 0, engine.Inflight("unknown"))

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		engine.Enqueue("target-A", nil, func(ctx context.Context, payload any) (any, error) {
			<-release
			return nil, nil
		})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, engine.Inflight("target-A"))
	close(release)
	<-done
}
