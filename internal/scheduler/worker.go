package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/taskgraph/internal/logging"
	"github.com/Iron-Ham/taskgraph/internal/osthread"
)

// WorkerState is the lifecycle state of a worker.
type WorkerState int32

const (
	// WorkerIdle means the worker is parked waiting for a task.
	WorkerIdle WorkerState = iota
	// WorkerAssigned means a task has been handed over but not started.
	WorkerAssigned
	// WorkerRunning means the worker is executing tasks.
	WorkerRunning
	// WorkerExiting means the worker observed an exit request.
	WorkerExiting
	// WorkerStopped means the worker's thread has returned.
	WorkerStopped
)

// String returns the string representation of the state.
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerAssigned:
		return "assigned"
	case WorkerRunning:
		return "running"
	case WorkerExiting:
		return "exiting"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker owns one OS thread that pulls tasks from its scheduler.
type Worker struct {
	id     int
	name   string
	sched  *Scheduler
	logger *logging.Logger

	mu   sync.Mutex
	slot Task

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	state    atomic.Int32
	executed atomic.Uint64
	handle   *osthread.Handle
}

func newWorker(s *Scheduler, id int) *Worker {
	name := fmt.Sprintf("tg-worker-%d", id)
	return &Worker{
		id:     id,
		name:   name,
		sched:  s,
		logger: s.logger.WithWorker(name),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

func (w *Worker) start() {
	w.handle = osthread.Spawn(w.name, w.logger, w.loop)
}

// ID returns the worker's index in the pool.
func (w *Worker) ID() int {
	return w.id
}

// Name returns the worker's thread name.
func (w *Worker) Name() string {
	return w.name
}

// TID returns the OS thread id of the worker, or 0 where the platform does
// not expose one.
func (w *Worker) TID() int {
	if w.handle == nil {
		return 0
	}
	if info := w.handle.Info(); info != nil {
		return info.TID
	}
	return 0
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Executed returns how many tasks this worker has run.
func (w *Worker) Executed() uint64 {
	return w.executed.Load()
}

// IsRunning reports whether the worker's OS thread is still alive.
func (w *Worker) IsRunning() bool {
	return w.handle != nil && w.handle.Running()
}

// SetTask hands t to the worker and wakes it. A nil t only wakes it. It
// reports false, without changing anything, when a task is already waiting
// in the slot.
func (w *Worker) SetTask(t Task) bool {
	w.mu.Lock()
	if t != nil {
		if w.slot != nil {
			w.mu.Unlock()
			return false
		}
		w.slot = t
		w.state.Store(int32(WorkerAssigned))
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *Worker) take() Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.slot
	w.slot = nil
	return t
}

// ForceExit asks the worker to stop once its current task, if any, has
// returned. If wait is true it blocks until the OS thread has stopped.
func (w *Worker) ForceExit(wait bool) {
	w.quitOnce.Do(func() { close(w.quit) })
	if wait && w.handle != nil {
		<-w.handle.Done()
	}
}

func (w *Worker) exitRequested() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

func (w *Worker) loop() {
	defer w.state.Store(int32(WorkerStopped))

	for {
		select {
		case <-w.quit:
			w.state.Store(int32(WorkerExiting))
			return
		case <-w.wake:
		}

		t := w.take()
		for t != nil {
			w.state.Store(int32(WorkerRunning))
			w.sched.execute(w, t)
			w.executed.Add(1)

			if w.exitRequested() {
				w.state.Store(int32(WorkerExiting))
				return
			}
			t = w.sched.nextReadyTask(w)
		}
		// A task may already have been assigned after we parked.
		w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerIdle))
	}
}
