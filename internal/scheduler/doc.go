// Package scheduler runs a dependency graph of tasks on a fixed pool of
// worker threads.
//
// # Model
//
// A [Task] names the tasks it depends on. [Scheduler.AddTask] registers a
// task together with all of its dependencies (recursively, dependencies
// first). A task with no dependencies that nothing depends on is handed to
// an idle worker at once. Every other task goes through the pending queue
// into the active-task table, where the sweep promotes it to scheduled once
// every dependency reports [Task.IsExecuted].
//
// Tasks that other tasks depend on stay in the table after they are
// scheduled, so dependents that arrive later can still see that they have
// not finished. A dependency that is not in the table counts as complete.
//
// # Queues and locks
//
// Three [handoff.Queue]s connect producers and workers:
//
//   - pending: tasks waiting to be drained into the table by the sweep
//   - ready: scheduled tasks no idle worker was available for
//   - idle: workers with nothing to do
//
// The ready and idle queues are only touched under the queues lock, so a
// worker parking itself and a producer publishing a task always meet: either
// the task finds the idle worker or the worker finds the task.
//
// The table is only touched under the sweep lock. Any goroutine may request
// a sweep; exactly one runs it at a time and keeps running until every
// request made in the meantime has been serviced.
//
// # Completion
//
// After Execute returns, the worker marks the task executed. Tasks that are
// dependency targets are handed back to the sweep, which calls
// [Task.OnExecuted] and retires them from the table; other tasks are
// finished on the worker directly. OnExecuted runs exactly once per task,
// after which the task's [Counter] (if any) is decremented and
// [Base.Done] is closed.
//
// # Shutdown
//
// [Scheduler.Finalize] turns every entry point into a no-op.
// [Scheduler.Shutdown] additionally asks every worker to exit and joins them
// with a bounded number of grace periods, reporting workers that are still
// running at the end instead of waiting forever.
package scheduler
