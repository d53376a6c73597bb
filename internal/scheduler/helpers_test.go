package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/taskgraph/internal/handoff"
	"github.com/Iron-Ham/taskgraph/internal/logging"
	"github.com/Iron-Ham/taskgraph/internal/testutil"
)

// clock hands out a global sequence so tests can compare the order of
// events across workers.
type clock struct {
	n atomic.Int64
}

func (c *clock) tick() int64 {
	return c.n.Add(1)
}

type testTask struct {
	Base
	clock *clock
	fn    func(s *Scheduler)

	start    atomic.Int64
	end      atomic.Int64
	runs     atomic.Int32
	finished atomic.Int32
	released atomic.Int32
}

func newTestTask(c *clock, deps ...Task) *testTask {
	t := &testTask{clock: c}
	t.DependsOn(deps...)
	return t
}

func (t *testTask) Execute(s *Scheduler) {
	t.runs.Add(1)
	if t.clock != nil {
		t.start.Store(t.clock.tick())
	}
	if t.fn != nil {
		t.fn(s)
	}
	if t.clock != nil {
		t.end.Store(t.clock.tick())
	}
}

func (t *testTask) OnExecuted() {
	t.finished.Add(1)
}

func (t *testTask) Release() {
	t.released.Add(1)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.QueueCapacity = 256
	cfg.TableBuckets = 64
	cfg.TeardownGrace = 20 * time.Millisecond
	return cfg
}

func newTestScheduler(t *testing.T, cfg Config, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// newUnstartedScheduler builds a scheduler with cfg.Workers workers whose
// threads are never started. Its idle and ready queues start empty, so
// tests can drive the queue handoffs directly.
func newUnstartedScheduler(cfg Config) *Scheduler {
	s := &Scheduler{
		id:      "unstarted",
		cfg:     cfg,
		logger:  logging.NopLogger(),
		table:   newActiveTable(cfg.TableBuckets),
		pending: handoff.New[Task]("pending", cfg.QueueCapacity),
		ready:   handoff.New[Task]("ready", cfg.QueueCapacity),
		idle:    handoff.New[*Worker]("idle", cfg.Workers),
	}
	s.workers = make([]*Worker, cfg.Workers)
	for i := range s.workers {
		s.workers[i] = newWorker(s, i)
	}
	return s
}

func waitCounter(t *testing.T, c *Counter) {
	t.Helper()
	testutil.Wait(t, c, "join counter")
}

func waitTask(t *testing.T, task testutil.Waiter) {
	t.Helper()
	testutil.Wait(t, task, "task")
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	testutil.Eventually(t, cond, msg)
}
