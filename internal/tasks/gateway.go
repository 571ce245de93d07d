// Package tasks runs long work off the request path: a fixed worker pool
// over a buffered queue, with a poll-based result contract. Submitted work
// cannot be cancelled; callers can only stop polling.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ampflux/internal/logs"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is what Poll returns. Error is set only for StatusError.
type Result struct {
	Status Status `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Task is the unit of work. The context is the gateway's lifetime, not the
// submitting request's: submission is fire-and-forget.
type Task func(ctx context.Context) (any, error)

// Callback runs on the worker goroutine after the result is recorded.
type Callback func(id string, res Result)

var (
	ErrQueueFull = errors.New("task queue is full")
	ErrShutdown  = errors.New("task gateway is shut down")
)

// NewTaskID mints the id a caller passes to Submit. Ids exist before
// submission so callers can persist their bookkeeping first.
func NewTaskID() string { return uuid.NewString() }

type entry struct {
	res    Result
	doneAt time.Time // zero while pending
}

type job struct {
	id string
	fn Task
	cb Callback
}

type Gateway struct {
	mu      sync.Mutex
	results map[string]*entry
	closed  bool

	jobs      chan job
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	retention time.Duration
}

// New starts the pool. Terminal results are kept for retention and swept on
// access; pending entries are never evicted.
func New(workers, queueSize int, retention time.Duration) *Gateway {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if retention <= 0 {
		retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		results:   make(map[string]*entry),
		jobs:      make(chan job, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		retention: retention,
	}
	g.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go g.worker()
	}
	return g
}

// Submit enqueues fn under the caller's id. Fails fast when the queue is
// saturated instead of blocking the request. The send happens under the
// mutex so it cannot race Shutdown closing the channel.
func (g *Gateway) Submit(id string, fn Task, cb Callback) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrShutdown
	}
	g.gcLocked()
	g.results[id] = &entry{res: Result{Status: StatusPending}}

	select {
	case g.jobs <- job{id: id, fn: fn, cb: cb}:
		return nil
	default:
		delete(g.results, id)
		return ErrQueueFull
	}
}

// Poll reports the task's current state. Unknown ids (never submitted, or
// swept after retention) return ok=false.
func (g *Gateway) Poll(id string) (Result, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gcLocked()
	e, ok := g.results[id]
	if !ok {
		return Result{}, false
	}
	return e.res, true
}

// Shutdown stops intake and waits for in-flight tasks, bounded by ctx.
// Idempotent; Submit after it returns ErrShutdown.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	g.cancel()
	close(g.jobs)
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) worker() {
	defer g.wg.Done()
	for j := range g.jobs {
		res := g.run(j)

		g.mu.Lock()
		if e, ok := g.results[j.id]; ok {
			e.res = res
			e.doneAt = time.Now()
		}
		g.mu.Unlock()

		if j.cb != nil {
			j.cb(j.id, res)
		}
	}
}

// run executes one task; a panic becomes an error result rather than
// taking the worker down.
func (g *Gateway) run(j job) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logs.Logger.Errorf("task panic: id=%s err=%v", j.id, rec)
			res = Result{Status: StatusError, Error: fmt.Sprintf("%v", rec)}
		}
	}()
	out, err := j.fn(g.ctx)
	if err != nil {
		return Result{Status: StatusError, Error: err.Error()}
	}
	return Result{Status: StatusSuccess, Result: out}
}

func (g *Gateway) gcLocked() {
	cut := time.Now().Add(-g.retention)
	for id, e := range g.results {
		if !e.doneAt.IsZero() && e.doneAt.Before(cut) {
			delete(g.results, id)
		}
	}
}
