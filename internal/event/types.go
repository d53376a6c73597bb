package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "scheduler.started", "task.stalled")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeSchedulerStarted  = "scheduler.started"
	TypeSchedulerStopped  = "scheduler.stopped"
	TypeSchedulerPressure = "scheduler.pressure"
	TypeQueueOverflow     = "queue.overflow"
	TypeTaskPanicked      = "task.panicked"
	TypeTaskStalled       = "task.stalled"
	TypeTaskCycle         = "task.cycle"
	TypeWorkerLeaked      = "worker.leaked"
	TypeConfigReloaded    = "config.reloaded"
)

// -----------------------------------------------------------------------------
// Scheduler Lifecycle Events
// -----------------------------------------------------------------------------

// SchedulerStartedEvent is emitted once every worker thread is running.
type SchedulerStartedEvent struct {
	baseEvent
	SchedulerID string
	Workers     int
}

// NewSchedulerStartedEvent creates a SchedulerStartedEvent.
func NewSchedulerStartedEvent(schedulerID string, workers int) SchedulerStartedEvent {
	return SchedulerStartedEvent{
		baseEvent:   newBaseEvent(TypeSchedulerStarted),
		SchedulerID: schedulerID,
		Workers:     workers,
	}
}

// SchedulerStoppedEvent is emitted when teardown finishes, successfully or not.
type SchedulerStoppedEvent struct {
	baseEvent
	SchedulerID string
	Joined      int      // Workers whose threads stopped
	Leaked      []string // Workers still running when teardown gave up
}

// NewSchedulerStoppedEvent creates a SchedulerStoppedEvent.
func NewSchedulerStoppedEvent(schedulerID string, joined int, leaked []string) SchedulerStoppedEvent {
	return SchedulerStoppedEvent{
		baseEvent:   newBaseEvent(TypeSchedulerStopped),
		SchedulerID: schedulerID,
		Joined:      joined,
		Leaked:      leaked,
	}
}

// Pressure levels reported by SchedulerPressureEvent.
const (
	PressureHalfFull = "half-full"
	PressureFull     = "full"
)

// SchedulerPressureEvent is emitted when the ready queue crosses half or full
// capacity.
type SchedulerPressureEvent struct {
	baseEvent
	SchedulerID string
	Level       string // PressureHalfFull or PressureFull
	Depth       int
	Capacity    int
}

// NewSchedulerPressureEvent creates a SchedulerPressureEvent.
func NewSchedulerPressureEvent(schedulerID, level string, depth, capacity int) SchedulerPressureEvent {
	return SchedulerPressureEvent{
		baseEvent:   newBaseEvent(TypeSchedulerPressure),
		SchedulerID: schedulerID,
		Level:       level,
		Depth:       depth,
		Capacity:    capacity,
	}
}

// QueueOverflowEvent is emitted when a handoff queue rejects a task.
type QueueOverflowEvent struct {
	baseEvent
	SchedulerID string
	Queue       string
	TaskID      uint64
}

// NewQueueOverflowEvent creates a QueueOverflowEvent.
func NewQueueOverflowEvent(schedulerID, queue string, taskID uint64) QueueOverflowEvent {
	return QueueOverflowEvent{
		baseEvent:   newBaseEvent(TypeQueueOverflow),
		SchedulerID: schedulerID,
		Queue:       queue,
		TaskID:      taskID,
	}
}

// -----------------------------------------------------------------------------
// Task Diagnostics Events
// -----------------------------------------------------------------------------

// TaskPanickedEvent is emitted when a task's Execute panics on a worker.
type TaskPanickedEvent struct {
	baseEvent
	SchedulerID string
	TaskID      uint64
	Worker      string
	Value       string
}

// NewTaskPanickedEvent creates a TaskPanickedEvent.
func NewTaskPanickedEvent(schedulerID string, taskID uint64, worker, value string) TaskPanickedEvent {
	return TaskPanickedEvent{
		baseEvent:   newBaseEvent(TypeTaskPanicked),
		SchedulerID: schedulerID,
		TaskID:      taskID,
		Worker:      worker,
		Value:       value,
	}
}

// TaskStalledEvent is emitted once for a task that stayed unresolved for the
// configured number of sweeps.
type TaskStalledEvent struct {
	baseEvent
	SchedulerID string
	TaskID      uint64
	Sweeps      int
	Unresolved  []uint64 // Dependencies not yet executed
}

// NewTaskStalledEvent creates a TaskStalledEvent.
func NewTaskStalledEvent(schedulerID string, taskID uint64, sweeps int, unresolved []uint64) TaskStalledEvent {
	return TaskStalledEvent{
		baseEvent:   newBaseEvent(TypeTaskStalled),
		SchedulerID: schedulerID,
		TaskID:      taskID,
		Sweeps:      sweeps,
		Unresolved:  unresolved,
	}
}

// TaskCycleEvent is emitted when AddTask rejects a dependency cycle.
type TaskCycleEvent struct {
	baseEvent
	SchedulerID string
	Path        []uint64 // Task ids along the cycle, first == last
}

// NewTaskCycleEvent creates a TaskCycleEvent.
func NewTaskCycleEvent(schedulerID string, path []uint64) TaskCycleEvent {
	return TaskCycleEvent{
		baseEvent:   newBaseEvent(TypeTaskCycle),
		SchedulerID: schedulerID,
		Path:        path,
	}
}

// -----------------------------------------------------------------------------
// Worker Events
// -----------------------------------------------------------------------------

// WorkerLeakedEvent is emitted for each worker still running after the last
// teardown join attempt.
type WorkerLeakedEvent struct {
	baseEvent
	SchedulerID string
	Worker      string
	Attempts    int
}

// NewWorkerLeakedEvent creates a WorkerLeakedEvent.
func NewWorkerLeakedEvent(schedulerID, worker string, attempts int) WorkerLeakedEvent {
	return WorkerLeakedEvent{
		baseEvent:   newBaseEvent(TypeWorkerLeaked),
		SchedulerID: schedulerID,
		Worker:      worker,
		Attempts:    attempts,
	}
}

// -----------------------------------------------------------------------------
// Configuration Events
// -----------------------------------------------------------------------------

// ConfigReloadedEvent is emitted when the config file changes on disk and
// has been re-read.
type ConfigReloadedEvent struct {
	baseEvent
	Path     string
	LogLevel string
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(path, logLevel string) ConfigReloadedEvent {
	return ConfigReloadedEvent{
		baseEvent: newBaseEvent(TypeConfigReloaded),
		Path:      path,
		LogLevel:  logLevel,
	}
}
