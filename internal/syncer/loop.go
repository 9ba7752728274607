package syncer

import (
	"context"
	"errors"
	"log/slog"
)

// ErrStopped is returned when a task is submitted to a stopped loop.
var ErrStopped = errors.New("update loop stopped")

// Loop is the single-writer update loop that serializes every mutation of
// shared state: local submissions (history append, progress advance) and
// inbound remote reconciliation both run here, so a remote overwrite and
// a local submission can never interleave partially.
//
// All mutations happen in the Run goroutine. Run must be called from
// exactly one goroutine; Submit and Do are safe from any goroutine.
type Loop struct {
	queue *taskQueue
}

// NewLoop creates an idle update loop. Call Run to start processing.
func NewLoop() *Loop {
	return &Loop{queue: newTaskQueue()}
}

// Run processes tasks in FIFO order until the context is cancelled or
// Stop is called. A panicking task is logged and processing continues;
// one bad remote snapshot must not take down local operation.
func (l *Loop) Run(ctx context.Context) error {
	slog.Debug("update loop starting")

	for {
		fn, ok := l.queue.TryDequeue()
		if ok {
			runTask(fn)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("update loop stopping: context cancelled")
			l.queue.Close()
			// Drain what is already queued so blocked Do callers finish.
			for {
				fn, ok := l.queue.TryDequeue()
				if !ok {
					break
				}
				runTask(fn)
			}
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Len() == 0 {
				// Queue closed and drained.
				slog.Debug("update loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the loop. Pending tasks are still drained
// by Run before it returns.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Submit enqueues a task without waiting for it to execute. Used for
// inbound remote snapshots. Returns false if the loop is stopped.
func (l *Loop) Submit(fn func()) bool {
	return l.queue.Enqueue(fn)
}

// Do enqueues a task and blocks until it has executed. Used by the
// submission path, which needs its result before returning to the
// learner.
func (l *Loop) Do(fn func()) error {
	done := make(chan struct{})
	ok := l.queue.Enqueue(func() {
		defer close(done)
		fn()
	})
	if !ok {
		return ErrStopped
	}
	<-done
	return nil
}

func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("update task panicked", "panic", r)
		}
	}()
	fn()
}
