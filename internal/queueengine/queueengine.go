// Package queueengine implements the gateway's per-target bounded FIFO
// admission queue: one independent queue per target, serial (or bounded
// concurrent) execution, dual queue-wait/upstream-latency timing, and
// timeout/cancellation/shutdown handling.
//
// The queues map uses the same RWMutex double-checked-locking idiom as
// internal/circuitbreaker.Manager.Get: an optimistic read lock first, a
// write lock with a re-check only on the miss path.
package queueengine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Executor performs the actual upstream call for a queued item. ctx is
// cancelled when the item's deadline elapses during execution or the
// engine is shut down.
type Executor func(ctx context.Context, payload any) (any, error)

// Outcome is returned to the caller of Enqueue on success.
type Outcome struct {
	Result            any
	QueueWaitMs       int64
	UpstreamLatencyMs int64
}

var (
	// ErrQueueFull is returned when a target's waiting list is already at
	// max_queue_per_target.
	ErrQueueFull = errors.New("queueengine: queue full")
	// ErrTimeout is returned when an item's deadline elapses either while
	// waiting or during upstream execution.
	ErrTimeout = errors.New("queueengine: timeout")
	// ErrShutdown is returned for items active or waiting at the moment
	// Shutdown is called, and for any Enqueue after Shutdown.
	ErrShutdown = errors.New("queueengine: shutdown")
)

// Limits bounds a single target's queue.
type Limits struct {
	TimeoutMs   int
	MaxQueue    int
	MaxInflight int
}

// Engine is a process-wide manager of per-target queues.
type Engine struct {
	mu       sync.RWMutex
	queues   map[string]*perTargetQueue
	limits   Limits
	shutdown bool
}

// New builds an Engine applying limits to every target's queue, created
// lazily on first use.
func New(limits Limits) *Engine {
	return &Engine{
		queues: make(map[string]*perTargetQueue),
		limits: limits,
	}
}

// Enqueue admits payload to target's queue and blocks until the item
// resolves, is rejected, times out, or the engine shuts down.
func (e *Engine) Enqueue(target string, payload any, exec Executor) (Outcome, error) {
	q, err := e.getOrCreateQueue(target)
	if err != nil {
		return Outcome{}, err
	}
	return q.enqueue(payload, exec)
}

func (e *Engine) getOrCreateQueue(target string) (*perTargetQueue, error) {
	e.mu.RLock()
	if e.shutdown {
		e.mu.RUnlock()
		return nil, ErrShutdown
	}
	q, ok := e.queues[target]
	e.mu.RUnlock()
	if ok {
		return q, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return nil, ErrShutdown
	}
	if q, ok = e.queues[target]; ok {
		return q, nil
	}
	q = newPerTargetQueue(e.limits)
	e.queues[target] = q
	return q, nil
}

// Shutdown cancels every active item, rejects every waiting item with
// ErrShutdown, and refuses all further Enqueue calls.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.shutdown = true
	queues := e.queues
	e.queues = make(map[string]*perTargetQueue)
	e.mu.Unlock()

	for _, q := range queues {
		q.shutdownQueue()
	}
}

// Depth reports the current waiting-list size for target (0 if the
// target has no queue yet). Observational only.
func (e *Engine) Depth(target string) int {
	e.mu.RLock()
	q, ok := e.queues[target]
	e.mu.RUnlock()
	if !ok {
		return 0
	}
	return q.depth()
}

// Inflight reports the current inflight count for target.
func (e *Engine) Inflight(target string) int {
	e.mu.RLock()
	q, ok := e.queues[target]
	e.mu.RUnlock()
	if !ok {
		return 0
	}
	return q.inflightCount()
}

type cancelReason int

const (
	reasonNone cancelReason = iota
	reasonTimeout
	reasonShutdown
)

// item is a single admitted unit of work.
type item struct {
	payload   any
	exec      Executor
	waitStart time.Time
	dequeued  bool
	reason    cancelReason
	timer     *time.Timer
	ctx       context.Context
	cancel    context.CancelFunc
	resultCh  chan itemResult
}

type itemResult struct {
	value             any
	queueWaitMs       int64
	upstreamLatencyMs int64
	err               error
}

// perTargetQueue is one target's FIFO: a waiting list bounded by
// max_queue, and a bounded set of concurrently active items bounded by
// max_inflight.
type perTargetQueue struct {
	mu          sync.Mutex
	limits      Limits
	waiting     []*item
	active      map[*item]struct{}
	inflight    int
	isShutdown  bool
}

func newPerTargetQueue(limits Limits) *perTargetQueue {
	return &perTargetQueue{
		limits: limits,
		active: make(map[*item]struct{}),
	}
}

func (q *perTargetQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func (q *perTargetQueue) inflightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// enqueue implements §4.6.3: locate-or-create is the caller's job; this
// method implements steps 2-5 for an already-resolved queue.
func (q *perTargetQueue) enqueue(payload any, exec Executor) (Outcome, error) {
	q.mu.Lock()
	if q.isShutdown {
		q.mu.Unlock()
		return Outcome{}, ErrShutdown
	}
	if len(q.waiting) >= q.limits.MaxQueue {
		q.mu.Unlock()
		return Outcome{}, ErrQueueFull
	}

	ctx, cancel := context.WithCancel(context.Background())
	it := &item{
		payload:   payload,
		exec:      exec,
		waitStart: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		resultCh:  make(chan itemResult, 1),
	}
	it.timer = time.AfterFunc(time.Duration(q.limits.TimeoutMs)*time.Millisecond, func() {
		q.onTimerFire(it)
	})

	var runNow bool
	if q.inflight < q.limits.MaxInflight {
		it.dequeued = true
		q.inflight++
		q.active[it] = struct{}{}
		runNow = true
	} else {
		q.waiting = append(q.waiting, it)
	}
	q.mu.Unlock()

	if runNow {
		go q.runExecutor(it)
	}

	res := <-it.resultCh
	if res.err != nil {
		// Timing is populated only when exec() actually ran and returned
		// this error (an upstream-derived outcome); ErrQueueFull/ErrTimeout/
		// ErrShutdown rejections never reached exec() and carry zero timing.
		return Outcome{QueueWaitMs: res.queueWaitMs, UpstreamLatencyMs: res.upstreamLatencyMs}, res.err
	}
	return Outcome{
		Result:            res.value,
		QueueWaitMs:       res.queueWaitMs,
		UpstreamLatencyMs: res.upstreamLatencyMs,
	}, nil
}

// onTimerFire implements §4.6.3's timer semantics: if the item is still
// waiting, remove and reject it directly. If it has already been
// dequeued (i.e. is executing), trigger its cancellation handle instead
// of completing it directly — the executor path delivers the single
// completion once exec() observes the cancelled context.
func (q *perTargetQueue) onTimerFire(it *item) {
	q.mu.Lock()
	if !it.dequeued {
		for i, w := range q.waiting {
			if w == it {
				q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
				break
			}
		}
		it.dequeued = true
		q.mu.Unlock()
		it.resultCh <- itemResult{err: ErrTimeout}
		return
	}
	if it.reason == reasonNone {
		it.reason = reasonTimeout
	}
	q.mu.Unlock()
	it.cancel()
}

// runExecutor implements the executor path of §4.6.3 step 4: it assumes
// the caller has already incremented inflight, registered the active
// handle, and marked the item dequeued under the queue's critical
// section.
func (q *perTargetQueue) runExecutor(it *item) {
	execStart := time.Now()
	queueWaitMs := execStart.Sub(it.waitStart).Milliseconds()

	value, err := it.exec(it.ctx, it.payload)
	upstreamLatencyMs := time.Since(execStart).Milliseconds()

	it.timer.Stop()

	q.mu.Lock()
	delete(q.active, it)
	q.inflight--
	var next *item
	if len(q.waiting) > 0 && q.inflight < q.limits.MaxInflight {
		next = q.waiting[0]
		q.waiting = q.waiting[1:]
		next.dequeued = true
		q.inflight++
		q.active[next] = struct{}{}
	}
	reason := it.reason
	q.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if reason == reasonShutdown {
				it.resultCh <- itemResult{err: ErrShutdown}
			} else {
				it.resultCh <- itemResult{err: ErrTimeout}
			}
		} else {
			it.resultCh <- itemResult{err: err, queueWaitMs: queueWaitMs, upstreamLatencyMs: upstreamLatencyMs}
		}
	} else {
		it.resultCh <- itemResult{value: value, queueWaitMs: queueWaitMs, upstreamLatencyMs: upstreamLatencyMs}
	}

	if next != nil {
		go q.runExecutor(next)
	}
}

// shutdownQueue implements §4.6.3's shutdown(): cancel every active
// handle, drain and reject every waiting item, and refuse further
// enqueues on this queue.
func (q *perTargetQueue) shutdownQueue() {
	q.mu.Lock()
	q.isShutdown = true

	for it := range q.active {
		if it.reason == reasonNone {
			it.reason = reasonShutdown
		}
	}
	active := make([]*item, 0, len(q.active))
	for it := range q.active {
		active = append(active, it)
	}

	waiting := q.waiting
	q.waiting = nil
	q.mu.Unlock()

	for _, it := range waiting {
		it.timer.Stop()
		it.resultCh <- itemResult{err: ErrShutdown}
	}
	for _, it := range active {
		it.cancel()
	}
}
