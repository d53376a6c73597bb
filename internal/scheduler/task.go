package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
)

// Task is a unit of schedulable work.
//
// Concrete tasks embed [Base], which supplies everything except Execute.
// Tasks must be used through pointers: the scheduler identifies a task by
// the pointer stored in the interface.
type Task interface {
	// Dependencies returns the tasks that must be executed before this one.
	// The result must not change once the task has been added.
	Dependencies() []Task

	// IsExecuted reports whether the work is done. Once true it must stay
	// true. Base reports true as soon as Execute has returned.
	IsExecuted() bool

	// Execute does the work. s is nil when the task is run directly rather
	// than by a worker; otherwise Execute may add further tasks to s.
	Execute(s *Scheduler)

	// OnExecuted is called exactly once after IsExecuted first reports true.
	// For a task that nothing depends on and whose IsExecuted is true as
	// soon as Execute returns, it runs on the worker right after Execute.
	// Otherwise the sweep calls it, on whichever goroutine owns the sweep.
	OnExecuted()

	base() *Base
}

// Releaser is implemented by auto-destroy tasks that want to be told when
// the scheduler has dropped its last reference to them.
type Releaser interface {
	Release()
}

var lastTaskID atomic.Uint64

// Base carries the scheduling state of a task. Embed it by value in a
// concrete task type and do not copy it afterwards.
//
// The flags are written by the scheduler only. Base itself is safe for
// concurrent use.
type Base struct {
	id          atomic.Uint64
	deps        []Task
	counter     *Counter
	autoDestroy bool

	added        atomic.Bool
	scheduled    atomic.Bool
	isDependency atomic.Bool
	hashed       atomic.Bool
	executed     atomic.Bool
	finished     atomic.Bool
	released     atomic.Bool
	// queued is set while the task sits on the pending queue.
	queued atomic.Bool

	// Guarded by the scheduler's sweep lock.
	stalledSweeps int

	doneOnce sync.Once
	done     chan struct{}
	err      atomic.Pointer[error]
}

func (b *Base) base() *Base { return b }

// DependsOn appends dependencies. It must be called before the task is
// added to a scheduler.
func (b *Base) DependsOn(deps ...Task) {
	b.deps = append(b.deps, deps...)
}

// Dependencies returns the dependencies registered with DependsOn.
func (b *Base) Dependencies() []Task {
	return b.deps
}

// JoinCounter increments c and decrements it again once this task has
// finished. It must be called at most once, before the task is added.
func (b *Base) JoinCounter(c *Counter) {
	c.Add(1)
	b.counter = c
}

// Counter returns the join counter set with JoinCounter, or nil.
func (b *Base) Counter() *Counter {
	return b.counter
}

// SetAutoDestroy marks the task as owned by the scheduler: once it has
// finished and is no longer needed as a dependency target, the scheduler
// drops it and calls Release if the task implements Releaser.
func (b *Base) SetAutoDestroy(v bool) {
	b.autoDestroy = v
}

// ID returns the task id, assigned when the task is first added. IDs are
// only used for hash placement and may collide across schedulers.
func (b *Base) ID() uint64 {
	return b.id.Load()
}

func (b *Base) ensureID() uint64 {
	if id := b.id.Load(); id != 0 {
		return id
	}
	b.id.CompareAndSwap(0, lastTaskID.Add(1))
	return b.id.Load()
}

// IsExecuted reports whether Execute has returned.
func (b *Base) IsExecuted() bool {
	return b.executed.Load()
}

// OnExecuted is a no-op hook; concrete tasks may override it.
func (b *Base) OnExecuted() {}

// Done returns a channel closed once the task has finished, that is after
// OnExecuted has run.
func (b *Base) Done() <-chan struct{} {
	b.doneOnce.Do(b.initDone)
	return b.done
}

func (b *Base) initDone() {
	b.done = make(chan struct{})
}

func (b *Base) closeDone() {
	b.doneOnce.Do(b.initDone)
	close(b.done)
}

// Wait blocks until the task has finished or ctx is done.
func (b *Base) Wait(ctx context.Context) error {
	select {
	case <-b.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error recorded when Execute panicked, or nil.
func (b *Base) Err() error {
	if p := b.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *Base) setErr(err error) {
	b.err.Store(&err)
}

// Flags is a snapshot of a task's scheduling state.
type Flags struct {
	Added        bool
	Scheduled    bool
	IsDependency bool
	Hashed       bool
	Executed     bool
	Finished     bool
}

// Flags returns a snapshot of the scheduling state. Fields are read
// individually and may be mutually inconsistent while the task is in flight.
func (b *Base) Flags() Flags {
	return Flags{
		Added:        b.added.Load(),
		Scheduled:    b.scheduled.Load(),
		IsDependency: b.isDependency.Load(),
		Hashed:       b.hashed.Load(),
		Executed:     b.executed.Load(),
		Finished:     b.finished.Load(),
	}
}

// Run executes t on the calling goroutine without a scheduler, then runs its
// completion bookkeeping. Dependencies are not consulted.
func Run(t Task) {
	b := t.base()
	b.ensureID()
	t.Execute(nil)
	b.executed.Store(true)
	if _, r := finishTask(t); r != nil {
		panic(r.Value)
	}
}

// finishTask runs OnExecuted and the join bookkeeping exactly once. It
// reports whether this call did the work, and the panic raised by
// OnExecuted if any. The bookkeeping runs even when OnExecuted panics.
func finishTask(t Task) (bool, *panics.Recovered) {
	b := t.base()
	if !b.finished.CompareAndSwap(false, true) {
		return false, nil
	}
	var pc panics.Catcher
	pc.Try(t.OnExecuted)
	b.closeDone()
	if b.counter != nil {
		b.counter.Done()
	}
	return true, pc.Recovered()
}
