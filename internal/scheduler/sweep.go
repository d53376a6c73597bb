package scheduler

import (
	"github.com/Iron-Ham/taskgraph/internal/event"
)

// Sweep moves pending tasks into the active table, schedules every tracked
// task whose dependencies have executed, and drops tasks that are no longer
// needed. Concurrent calls coalesce: one goroutine runs the sweep, and a
// request made while it runs causes one more pass.
func (s *Scheduler) Sweep() {
	if s.finalizing.Load() {
		return
	}
	s.sweepRequests.Add(1)

	for s.sweepOwner.CompareAndSwap(false, true) {
		s.sweepMu.Lock()
		for s.sweepRequests.Load() > 0 && !s.finalizing.Load() {
			s.sweepOnce()
			s.sweepRequests.Add(-1)
		}
		s.sweepMu.Unlock()
		s.sweepOwner.Store(false)

		// A request may have arrived after the inner loop gave up and
		// before ownership was released.
		if s.sweepRequests.Load() <= 0 || s.finalizing.Load() {
			return
		}
	}
}

// sweepOnce runs a single pass. The sweep lock must be held.
func (s *Scheduler) sweepOnce() {
	s.sweeps.Add(1)
	s.drainPending()

	for i := range s.table.bucketCount() {
		removed := s.table.sweepBucket(i, s.visit)
		for _, t := range removed {
			s.release(t)
		}
	}
}

// drainPending moves every pending task into the table. Tasks without
// dependencies that nobody waits on are scheduled straight away.
func (s *Scheduler) drainPending() {
	for {
		t, ok := s.pending.Dequeue()
		if !ok {
			return
		}
		b := t.base()
		b.queued.Store(false)

		if b.scheduled.Load() {
			switch {
			case b.hashed.Load():
			case t.IsExecuted() && !b.isDependency.Load():
				s.finish(t)
				s.release(t)
			default:
				// Still running, or executed but needed as a dependency
				// target until the walk below retires it.
				s.table.insert(t)
			}
			continue
		}

		if len(t.Dependencies()) > 0 || b.isDependency.Load() {
			s.table.insert(t)
			continue
		}
		if err := s.scheduleTask(t); err != nil {
			s.table.insert(t)
			s.retrySweep.Store(true)
		}
	}
}

// visit evaluates one tracked task and reports whether to unlink it.
func (s *Scheduler) visit(t Task) bool {
	b := t.base()

	if !b.scheduled.Load() {
		if !s.resolved(t) {
			s.noteStall(t)
			return false
		}
		if err := s.scheduleTask(t); err != nil {
			s.retrySweep.Store(true)
			return false
		}
		// Dependency targets stay so dependents can observe them.
		return !b.isDependency.Load()
	}

	if !t.IsExecuted() {
		return false
	}
	s.finish(t)
	return true
}

// resolved reports whether every dependency of t has executed. A dependency
// that is not tracked has either finished and been dropped, or was never
// needed by anyone still waiting.
func (s *Scheduler) resolved(t Task) bool {
	for _, d := range t.Dependencies() {
		if d == nil {
			continue
		}
		if s.table.contains(d) && !d.IsExecuted() {
			return false
		}
	}
	return true
}

func (s *Scheduler) noteStall(t Task) {
	if s.cfg.StallSweeps <= 0 {
		return
	}
	b := t.base()
	b.stalledSweeps++
	if b.stalledSweeps != s.cfg.StallSweeps {
		return
	}

	var unresolved []uint64
	for _, d := range t.Dependencies() {
		if d != nil && !d.IsExecuted() {
			unresolved = append(unresolved, d.base().ID())
		}
	}
	s.logger.Warn("task is still waiting on its dependencies",
		"task_id", b.ID(),
		"sweeps", b.stalledSweeps,
		"unresolved", unresolved,
	)
	s.bus.Publish(event.NewTaskStalledEvent(s.id, b.ID(), b.stalledSweeps, unresolved))
}
