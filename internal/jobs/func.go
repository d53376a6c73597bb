package jobs

import "github.com/Iron-Ham/taskgraph/internal/scheduler"

// FuncTask runs a function as a task.
type FuncTask struct {
	scheduler.Base
	fn func(s *scheduler.Scheduler)
}

// Func returns a task that calls fn when executed. deps must be executed
// before fn runs.
func Func(fn func(s *scheduler.Scheduler), deps ...scheduler.Task) *FuncTask {
	t := &FuncTask{fn: fn}
	t.DependsOn(deps...)
	return t
}

// Execute calls the wrapped function.
func (t *FuncTask) Execute(s *scheduler.Scheduler) {
	if t.fn != nil {
		t.fn(s)
	}
}
