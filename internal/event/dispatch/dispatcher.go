package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a SerialWorkDispatcher.
type State int

const (
	// StateNotStarted is the initial state. Offered items are queued but not processed.
	StateNotStarted State = iota

	// StateActive means queued items are processed as long as the work condition holds.
	StateActive

	// StatePaused means items are queued but not processed until Resume.
	StatePaused

	// StateShutdown is terminal. Offers are rejected.
	StateShutdown
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// WorkHandler processes the item at the head of the queue.
// Returning true removes the item and continues with the next one. Returning
// false leaves the item at the head and stops the worker until Resume or Offer.
// The context is cancelled when the dispatcher shuts down.
type WorkHandler[T any] func(ctx context.Context, item T) bool

// Condition gates processing. The worker only runs while it returns true.
// It is evaluated with the dispatcher's lock held and must not call back
// into the dispatcher.
type Condition func() bool

func always() bool { return true }

// SerialWorkDispatcher is a FIFO queue drained by at most one worker goroutine.
type SerialWorkDispatcher[T any] struct {
	name    string
	handler WorkHandler[T]
	opts    options

	mu         sync.Mutex
	state      State
	queue      []T
	condition  Condition
	initialJob func()
	finalJob   func()
	working    bool
	poked      bool

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	done    chan struct{}

	// Stats
	offered   atomic.Uint64
	processed atomic.Uint64
	stalled   atomic.Uint64
	panicked  atomic.Uint64
}

// NewSerialWorkDispatcher creates a dispatcher in StateNotStarted.
// The handler must not be nil.
func NewSerialWorkDispatcher[T any](name string, handler WorkHandler[T], opts ...Option) *SerialWorkDispatcher[T] {
	if handler == nil {
		panic("dispatch: nil work handler")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("component", "dispatcher").Str("dispatcher", name).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	return &SerialWorkDispatcher[T]{
		name:      name,
		handler:   handler,
		opts:      o,
		state:     StateNotStarted,
		condition: always,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Name returns the dispatcher name.
func (d *SerialWorkDispatcher[T]) Name() string {
	return d.name
}

// SetInitialJob sets a job that runs once on the worker before any queued
// item. It has no effect after Start.
func (d *SerialWorkDispatcher[T]) SetInitialJob(job func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateNotStarted {
		return
	}
	d.initialJob = job
}

// SetFinalJob sets a job that runs once after Shutdown, when the worker has exited.
func (d *SerialWorkDispatcher[T]) SetFinalJob(job func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateShutdown {
		return
	}
	d.finalJob = job
}

// SetCondition replaces the work condition. A nil condition always holds.
// Call Resume afterwards to re-evaluate queued items.
func (d *SerialWorkDispatcher[T]) SetCondition(cond Condition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cond == nil {
		cond = always
	}
	d.condition = cond
}

// Offer appends an item to the tail of the queue.
// Returns false if the dispatcher is shut down.
func (d *SerialWorkDispatcher[T]) Offer(item T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateShutdown {
		return false
	}

	d.queue = append(d.queue, item)
	d.offered.Add(1)

	if d.state == StateActive {
		d.startWorkerLocked()
	}
	return true
}

// Start moves the dispatcher from StateNotStarted to StateActive and runs the
// initial job, if any, before the first item.
// Returns false if already started.
func (d *SerialWorkDispatcher[T]) Start() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateShutdown:
		return false, ErrShutdown
	case StateNotStarted:
	default:
		return false, nil
	}

	d.state = StateActive
	d.startWorkerLocked()
	return true, nil
}

// Pause stops processing after the item currently being handled.
// Returns false if the dispatcher is not active.
func (d *SerialWorkDispatcher[T]) Pause() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateShutdown:
		return false, ErrShutdown
	case StateActive:
		d.state = StatePaused
		return true, nil
	default:
		return false, nil
	}
}

// Resume moves the dispatcher to StateActive and starts a worker if none is
// running and the work condition holds.
// Returns false if the dispatcher was never started.
func (d *SerialWorkDispatcher[T]) Resume() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateShutdown:
		return false, ErrShutdown
	case StateNotStarted:
		return false, nil
	}

	d.state = StateActive
	d.startWorkerLocked()
	return true, nil
}

// Shutdown cancels the in-flight worker, discards queued items and runs the
// final job once the worker has exited. It is idempotent and does not block;
// use Done to wait for completion.
func (d *SerialWorkDispatcher[T]) Shutdown() {
	d.mu.Lock()
	if d.state == StateShutdown {
		d.mu.Unlock()
		return
	}
	d.state = StateShutdown
	discarded := len(d.queue)
	d.queue = nil
	d.initialJob = nil
	final := d.finalJob
	d.finalJob = nil
	d.cancel()
	d.mu.Unlock()

	if discarded > 0 {
		d.opts.logger.Debug().Int("discarded", discarded).Msg("shutdown discarded queued items")
	}

	go func() {
		d.workers.Wait()
		if final != nil {
			d.runJob("final", final)
		}
		close(d.done)
	}()
}

// Done is closed once Shutdown has completed and the final job has run.
func (d *SerialWorkDispatcher[T]) Done() <-chan struct{} {
	return d.done
}

// State returns the current state.
func (d *SerialWorkDispatcher[T]) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// QueueDepth returns the number of queued items, including a parked head item.
func (d *SerialWorkDispatcher[T]) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// startWorkerLocked launches a worker unless one is running or there is
// nothing it could do. Must be called with d.mu held.
func (d *SerialWorkDispatcher[T]) startWorkerLocked() {
	if d.working {
		// The running worker re-checks a parked head item before exiting.
		d.poked = true
		return
	}
	if d.initialJob == nil && !d.canWorkLocked() {
		return
	}

	d.working = true
	d.workers.Add(1)
	go d.work(d.ctx)
}

// canWorkLocked reports whether the worker may process the head item.
func (d *SerialWorkDispatcher[T]) canWorkLocked() bool {
	if d.state != StateActive || len(d.queue) == 0 {
		return false
	}
	return d.checkCondition()
}

func (d *SerialWorkDispatcher[T]) checkCondition() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.opts.logger.Error().Interface("panic", r).Msg("work condition panicked")
			ok = false
		}
	}()
	return d.condition()
}

// work is the worker loop.
func (d *SerialWorkDispatcher[T]) work(ctx context.Context) {
	defer d.workers.Done()

	d.mu.Lock()
	job := d.initialJob
	d.initialJob = nil
	d.mu.Unlock()
	if job != nil {
		d.runJob("initial", job)
	}

	for {
		d.mu.Lock()
		d.poked = false
		if ctx.Err() != nil || !d.canWorkLocked() {
			d.working = false
			d.mu.Unlock()
			return
		}
		item := d.queue[0]
		d.mu.Unlock()

		if !d.process(ctx, item) {
			d.mu.Lock()
			if d.poked && ctx.Err() == nil {
				d.mu.Unlock()
				continue
			}
			d.working = false
			d.mu.Unlock()
			d.stalled.Add(1)
			return
		}

		d.mu.Lock()
		if d.state != StateShutdown && len(d.queue) > 0 {
			var zero T
			d.queue[0] = zero
			d.queue = d.queue[1:]
		}
		d.mu.Unlock()
	}
}

// process hands one item to the handler, treating a panic as "not processed".
func (d *SerialWorkDispatcher[T]) process(ctx context.Context, item T) bool {
	var ok bool
	result := Execute(func() {
		ok = d.handler(ctx, item)
	})
	if result.Panicked {
		d.panicked.Add(1)
		d.reportPanic(item, result)
		return false
	}
	if ok {
		d.processed.Add(1)
	}
	return ok
}

func (d *SerialWorkDispatcher[T]) runJob(kind string, job func()) {
	result := Execute(job)
	if result.Panicked {
		d.panicked.Add(1)
		d.reportPanic(kind+" job", result)
	}
}

func (d *SerialWorkDispatcher[T]) reportPanic(item any, result Result) {
	d.opts.logger.Error().
		Interface("panic", result.PanicValue).
		Bytes("stack", result.PanicStack).
		Msg("work handler panicked")

	if d.opts.panicHandler != nil {
		func() {
			defer func() { _ = recover() }()
			d.opts.panicHandler(item, result.PanicValue, result.PanicStack)
		}()
	}
}

// Stats returns dispatcher statistics.
func (d *SerialWorkDispatcher[T]) Stats() Stats {
	return Stats{
		Offered:    d.offered.Load(),
		Processed:  d.processed.Load(),
		Stalled:    d.stalled.Load(),
		Panicked:   d.panicked.Load(),
		QueueDepth: d.QueueDepth(),
	}
}

// Stats contains statistics for a SerialWorkDispatcher.
type Stats struct {
	// Offered is the number of items accepted by Offer.
	Offered uint64

	// Processed is the number of items the handler completed.
	Processed uint64

	// Stalled is the number of times the worker parked an item and exited.
	Stalled uint64

	// Panicked is the number of handler or job panics.
	Panicked uint64

	// QueueDepth is the current number of queued items.
	QueueDepth int
}
