// Package dispatch provides the serial work dispatching primitives the event
// hub and its extension containers are built on.
//
// # SerialWorkDispatcher
//
// A SerialWorkDispatcher is a FIFO queue of work items drained by at most one
// worker goroutine at a time. Callers offer items from any goroutine; the
// worker peeks the head item and hands it to the handler:
//
//   - handler returns true: the item is removed and the next one is processed
//   - handler returns false: the item stays at the head and the worker exits
//     until Resume or a new Offer re-evaluates it
//
// The dispatcher moves through these states:
//
//	StateNotStarted -> Start() -> StateActive
//	StateActive     -> Pause() -> StatePaused
//	StatePaused     -> Resume() -> StateActive
//	any state       -> Shutdown() -> StateShutdown (terminal)
//
// Start, Pause and Resume return ErrShutdown once the dispatcher is shut
// down; Offer returns false.
//
// # Executor
//
// Executor is a SerialWorkDispatcher of closures. Submit enqueues a task and
// returns immediately; Do enqueues a task and blocks until it has run, which
// is how state owned by an executor is read and written from other
// goroutines without a mutex.
//
// # Panic Recovery
//
// Handler and task panics are recovered at the dispatcher boundary, logged
// with their stack, and reported to an optional PanicHandler. A panicking
// work handler counts as "cannot process now": the item stays queued.
package dispatch
