package scheduler

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/vk/sdbv/internal/ctxlog"
)

// Handle identifies a scheduled task.
type Handle struct {
	cancelled atomic.Bool
}

// Cancel marks the task cancelled. A cancelled task that has not started is
// skipped; a running sequence task stops after its current item.
func (h *Handle) Cancel() {
	if h != nil {
		h.cancelled.Store(true)
	}
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool { return h != nil && h.cancelled.Load() }

// Controller is passed to running units so they can poll for cancellation.
type Controller struct {
	q *Queue
	h *Handle
}

// CancelRequested reports whether the running task, or the whole queue,
// has been cancelled since the unit started.
func (c *Controller) CancelRequested() bool {
	return c.h.Cancelled() || c.q.cancelAll.Load()
}

type entry struct {
	h    *Handle
	once bool
	// unit runs one piece of work and reports false when there was
	// nothing left to run.
	unit func(*Controller) bool
	stop func()
}

// Queue is a FIFO of cooperative tasks.
type Queue struct {
	mu    sync.Mutex
	tasks []*entry
	wake  chan struct{}

	// cancelAll is raised by CancelAll and cleared when the next unit
	// starts.
	cancelAll atomic.Bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Schedule appends a single-shot task.
func (q *Queue) Schedule(fn func(*Controller)) *Handle {
	return q.push(&entry{
		h:    &Handle{},
		once: true,
		unit: func(c *Controller) bool { fn(c); return true },
	})
}

// ScheduleEach appends a task that calls fn once per item of seq, one item
// per Step.
func ScheduleEach[T any](q *Queue, seq iter.Seq[T], fn func(T, *Controller)) *Handle {
	var (
		next func() (T, bool)
		stop func()
	)
	return q.push(&entry{
		h: &Handle{},
		unit: func(c *Controller) bool {
			if next == nil {
				next, stop = iter.Pull(seq)
			}
			v, ok := next()
			if !ok {
				return false
			}
			fn(v, c)
			return true
		},
		stop: func() {
			if stop != nil {
				stop()
			}
		},
	})
}

func (q *Queue) push(e *entry) *Handle {
	q.mu.Lock()
	q.tasks = append(q.tasks, e)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return e.h
}

// Cancel cancels the task behind h. It is the same as h.Cancel.
func (q *Queue) Cancel(h *Handle) { h.Cancel() }

// CancelAll cancels every queued task and signals the running unit.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.tasks {
		e.h.Cancel()
	}
	q.cancelAll.Store(true)
}

// Len returns the number of queued tasks that are not cancelled.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.tasks {
		if !e.h.Cancelled() {
			n++
		}
	}
	return n
}

// head returns the first live task, dropping cancelled ones.
func (q *Queue) head() *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) > 0 {
		e := q.tasks[0]
		if !e.h.Cancelled() {
			if e.once {
				q.tasks = q.tasks[1:]
			}
			return e
		}
		q.tasks = q.tasks[1:]
		if e.stop != nil {
			defer e.stop()
		}
	}
	return nil
}

func (q *Queue) remove(e *entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) > 0 && q.tasks[0] == e {
		q.tasks = q.tasks[1:]
	}
}

// Step runs one unit of work. It returns false when the queue was empty.
func (q *Queue) Step() bool {
	for {
		e := q.head()
		if e == nil {
			q.cancelAll.Store(false)
			return false
		}
		q.cancelAll.Store(false)
		ran := e.unit(&Controller{q: q, h: e.h})
		if !ran {
			q.remove(e)
			if e.stop != nil {
				e.stop()
			}
			continue
		}
		if e.once && e.stop != nil {
			e.stop()
		}
		return true
	}
}

// Drain runs units until the queue is empty and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for q.Step() {
		n++
	}
	return n
}

// Run drains the queue whenever work is scheduled, until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Task queue started.")
	defer logger.Debug("Task queue stopped.")
	for {
		for q.Step() {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
