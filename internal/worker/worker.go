// Package worker implements the per-worker reactor loop.
//
// A Worker runs one goroutine that drains a task queue. Everything a
// worker owns — its connection pool and all of that pool's state
// transitions — executes on this single goroutine, so pool code needs no
// locking of its own. Timers armed with AfterFunc deliver their callback
// onto the same loop.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultQueueSize is the task queue capacity per worker.
const DefaultQueueSize = 1024

// Worker is a single-goroutine serialization domain.
type Worker struct {
	id     int
	logger *slog.Logger

	tasks chan func()
	done  chan struct{}
}

// New creates a worker. Run must be called before tasks execute.
func New(id int, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:     id,
		logger: logger.With("worker", id),
		tasks:  make(chan func(), DefaultQueueSize),
		done:   make(chan struct{}),
	}
}

// ID returns the worker's index.
func (w *Worker) ID() int { return w.id }

// Run drains the task queue until ctx is cancelled. It must be called
// exactly once.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)

	w.logger.Debug("worker loop started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("worker loop stopped")
			return ctx.Err()
		case fn := <-w.tasks:
			fn()
		}
	}
}

// Submit queues fn for execution on the worker loop. It reports false when
// the loop has stopped; the task is then dropped.
func (w *Worker) Submit(fn func()) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.tasks <- fn:
		return true
	case <-w.done:
		return false
	}
}

// AfterFunc arms a one-shot timer that submits fn onto the worker loop
// after d. The timer discards itself on firing; there is no cancellation.
// A timer that fires after the loop has stopped is dropped.
func (w *Worker) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		w.Submit(fn)
	})
}
