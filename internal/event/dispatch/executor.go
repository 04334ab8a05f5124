package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Result represents the outcome of running a task or handler.
type Result struct {
	// Panicked is true if the function panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the function took to run.
	Duration time.Duration
}

// IsPanic returns true if the result indicates a panic.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// Execute runs fn, recovering from panics and capturing timing information.
func Execute(fn func()) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = debug.Stack()
		}
	}()

	fn()
	return result
}

// Executor runs submitted tasks one at a time, in submission order, on a
// dedicated goroutine. State confined to an executor needs no mutex as long
// as every access is a task.
type Executor struct {
	d *SerialWorkDispatcher[func()]
}

// NewExecutor creates and starts an executor.
func NewExecutor(name string, opts ...Option) *Executor {
	e := &Executor{}
	e.d = NewSerialWorkDispatcher(name, e.run, opts...)
	_, _ = e.d.Start()
	return e
}

// run executes one task. Tasks are never retried, so a panicking task is
// logged and dropped rather than parked.
func (e *Executor) run(_ context.Context, task func()) bool {
	result := Execute(task)
	if result.Panicked {
		e.d.panicked.Add(1)
		e.d.reportPanic("task", result)
	}
	return true
}

// Submit queues a task without waiting for it.
// Returns false if the executor is shut down.
func (e *Executor) Submit(task func()) bool {
	return e.d.Offer(task)
}

// Do queues a task and blocks until it has run.
// Returns false if the executor was shut down before the task ran.
// Do must not be called from a task running on the same executor.
func (e *Executor) Do(task func()) bool {
	done := make(chan struct{})
	if !e.d.Offer(func() {
		defer close(done)
		task()
	}) {
		return false
	}

	select {
	case <-done:
		return true
	case <-e.d.Done():
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Shutdown stops the executor. Queued tasks are discarded and callers blocked
// in Do return false.
func (e *Executor) Shutdown() {
	e.d.Shutdown()
}

// Done is closed once the executor has fully stopped.
func (e *Executor) Done() <-chan struct{} {
	return e.d.Done()
}

// IsShutdown reports whether Shutdown has been called.
func (e *Executor) IsShutdown() bool {
	return e.d.State() == StateShutdown
}

// Stats returns the underlying dispatcher statistics.
func (e *Executor) Stats() Stats {
	return e.d.Stats()
}
