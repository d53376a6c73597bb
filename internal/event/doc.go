// Package event provides a synchronous pub-sub bus that the scheduler uses
// to report notable conditions without depending on who consumes them.
//
// Events are low-volume by design: the scheduler publishes lifecycle and
// diagnostic events (capacity pressure, stalled tasks, panics, leaked
// workers), never one event per executed task.
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - scheduler.started, scheduler.stopped, scheduler.pressure
//   - queue.overflow
//   - task.panicked, task.stalled, task.cycle
//   - worker.leaked
//   - config.reloaded
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine, which may be a worker thread or a thread holding the
// sweep lock, so handlers must be quick and must not call back into the
// scheduler's AddTask. A panicking handler is recovered and logged.
package event
