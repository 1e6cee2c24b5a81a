// Package scheduler provides a cooperative, single-threaded task queue.
//
// # Why Queue Exists
//
// Viewport work (rebinding tiles, probing geometry, repainting headers) can
// touch thousands of objects. Splitting it into small units that run in
// FIFO order keeps input handling responsive: the owner interleaves calls
// to Step with its own event handling, and a fresh event can cancel work
// that became stale before it runs.
//
// # How It Works
//
// A task is either a single function or a function applied to each item of
// a sequence, one item per unit. Step runs exactly one unit of the task at
// the head of the queue:
//  1. Cancelled tasks at the head are dropped.
//  2. A single-shot task is removed and run.
//  3. A sequence task pulls its next item; an exhausted sequence is removed
//     and the next task is tried in the same Step.
//
// Cancellation is cooperative. Handle.Cancel marks one task, CancelAll marks
// every queued task. A unit already running is never interrupted; it can
// poll Controller.CancelRequested between pieces of work and return early.
//
// # Thread-Safety
//
// Scheduling and cancellation are safe from any goroutine. Units run on the
// goroutine that calls Step, Drain or Run, and only one of those may be
// active at a time.
package scheduler
