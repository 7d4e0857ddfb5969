package ratelimit

import (
	"context"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"
)

// Task is one unit of deferred work. The context it receives is the queue's
// lifetime context and is cancelled when the queue closes.
type Task func(ctx context.Context) error

// ErrorFunc observes a failed task. The drain keeps going regardless.
type ErrorFunc func(err error)

// Queue runs tasks strictly first-in-first-out, each one gated by a shared
// Limiter. At most one drain goroutine exists at a time: enqueueing while a
// drain is active feeds the running drain instead of spawning a second one.
// The backlog is unbounded and producers are never blocked, so sustained
// enqueueing beyond the rate limit grows memory and latency rather than
// shedding load.
type Queue struct {
	limiter *Limiter
	onError ErrorFunc

	mu       sync.Mutex
	pending  []Task
	draining bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// QueueOption customises a Queue.
type QueueOption func(*Queue)

// WithErrorFunc replaces the default error observer, which logs through logx.
func WithErrorFunc(fn ErrorFunc) QueueOption {
	return func(q *Queue) {
		if fn != nil {
			q.onError = fn
		}
	}
}

// NewQueue constructs a queue drained behind the given limiter.
func NewQueue(limiter *Limiter, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
		onError: func(err error) {
			logx.Errorf("ratelimit: queued task failed: %v", err)
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a task to the backlog and starts a drain if none is
// running. Nil tasks and tasks enqueued after Close are dropped.
func (q *Queue) Enqueue(task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, task)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.wg.Add(1)
	q.mu.Unlock()
	go q.drain()
}

// drain consumes the backlog one task at a time. It exits when the backlog
// empties or the queue closes; the draining flag is cleared under the same
// lock that Enqueue checks it, so a task enqueued at the exact moment the
// drain winds down either lands in this drain's loop or starts a new one,
// never neither.
func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.closed {
			q.draining = false
			q.mu.Unlock()
			return
		}
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.limiter.Acquire(q.ctx); err != nil {
			// Closed while waiting for budget. The remaining backlog is
			// dropped with the queue.
			q.mu.Lock()
			q.draining = false
			q.mu.Unlock()
			return
		}
		if err := task(q.ctx); err != nil {
			q.onError(err)
		}
	}
}

// Len reports the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close cancels the queue's context and waits for the active drain, if any,
// to finish its current task and exit. Tasks still pending are discarded.
// Close is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	alreadyClosed := q.closed
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
	if !alreadyClosed {
		q.cancel()
	}
	q.wg.Wait()
}
