package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/taskgraph/internal/errors"
	"github.com/Iron-Ham/taskgraph/internal/event"
	"github.com/Iron-Ham/taskgraph/internal/handoff"
	"github.com/Iron-Ham/taskgraph/internal/logging"
	"github.com/Iron-Ham/taskgraph/internal/osthread"
)

// Config sizes a Scheduler.
type Config struct {
	// Workers is the pool size. 0 means one worker per logical processor.
	Workers int
	// QueueCapacity bounds the pending and ready queues.
	QueueCapacity int
	// TableBuckets is the bucket count of the active-task table.
	TableBuckets int
	// StallSweeps reports a task still waiting after this many sweeps.
	// 0 disables the diagnostic.
	StallSweeps int
	// PressureInterval is the minimum time between two capacity warnings.
	PressureInterval time.Duration
	// TeardownGrace is how long Shutdown waits for workers per attempt.
	TeardownGrace time.Duration
	// TeardownAttempts is how many grace periods Shutdown waits in total.
	TeardownAttempts int
	// WorkerPriority is the nice value applied to every worker thread at
	// start. 0 leaves the threads at the priority they inherit.
	WorkerPriority int
}

// DefaultConfig returns the default sizing.
func DefaultConfig() Config {
	return Config{
		Workers:          0,
		QueueCapacity:    2048,
		TableBuckets:     1024,
		StallSweeps:      4096,
		PressureInterval: time.Second,
		TeardownGrace:    50 * time.Millisecond,
		TeardownAttempts: 5,
	}
}

// Option configures optional collaborators of a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventBus publishes scheduler events on bus.
func WithEventBus(bus *event.Bus) Option {
	return func(s *Scheduler) {
		s.bus = bus
	}
}

// Scheduler runs tasks on a fixed pool of worker threads.
type Scheduler struct {
	id     string
	cfg    Config
	logger *logging.Logger
	bus    *event.Bus

	workers []*Worker

	// sweepMu guards table. sweepOwner and sweepRequests make sure one
	// goroutine at a time runs the sweep while no request is lost.
	sweepMu       deadlock.Mutex
	sweepOwner    atomic.Bool
	sweepRequests atomic.Int64
	table         *activeTable

	// queuesMu makes ready/idle matching atomic.
	queuesMu deadlock.Mutex
	pending  *handoff.Queue[Task]
	ready    *handoff.Queue[Task]
	idle     *handoff.Queue[*Worker]

	finalizing atomic.Bool
	retrySweep atomic.Bool

	halfFullLog rate.Sometimes
	fullLog     rate.Sometimes

	sweeps   atomic.Uint64
	executed atomic.Uint64
	panicked atomic.Uint64

	shutdownOnce sync.Once
	shutdownErr  error
}

// New starts a Scheduler with cfg.Workers worker threads.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = osthread.LogicalProcessors()
	}

	s := &Scheduler{
		id:          uuid.NewString(),
		cfg:         cfg,
		logger:      logging.NopLogger(),
		table:       newActiveTable(cfg.TableBuckets),
		pending:     handoff.New[Task]("pending", cfg.QueueCapacity),
		ready:       handoff.New[Task]("ready", cfg.QueueCapacity),
		idle:        handoff.New[*Worker]("idle", cfg.Workers),
		halfFullLog: rate.Sometimes{First: 1, Interval: cfg.PressureInterval},
		fullLog:     rate.Sometimes{First: 1, Interval: cfg.PressureInterval},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithScheduler(s.id)

	s.workers = make([]*Worker, cfg.Workers)
	for i := range s.workers {
		w := newWorker(s, i)
		s.workers[i] = w
		if err := s.idle.Enqueue(w); err != nil {
			return nil, errors.NewSchedulerError("register idle worker", err).WithScheduler(s.id)
		}
	}
	for _, w := range s.workers {
		w.start()
	}
	if cfg.WorkerPriority != 0 {
		if err := s.SetWorkerPriority(cfg.WorkerPriority); err != nil {
			s.logger.Warn("failed to set worker priority", "priority", cfg.WorkerPriority, "error", err)
		}
	}

	s.logger.Info("scheduler started",
		"workers", cfg.Workers,
		"queue_capacity", s.ready.Cap(),
		"table_buckets", s.table.bucketCount(),
	)
	s.bus.Publish(event.NewSchedulerStartedEvent(s.id, cfg.Workers))
	return s, nil
}

func (c Config) validate() error {
	switch {
	case c.Workers < 0:
		return errors.NewValidationError("worker count must not be negative").WithField("Workers").WithValue(c.Workers)
	case c.QueueCapacity < 1:
		return errors.NewValidationError("queue capacity must be positive").WithField("QueueCapacity").WithValue(c.QueueCapacity)
	case c.TableBuckets < 1:
		return errors.NewValidationError("table bucket count must be positive").WithField("TableBuckets").WithValue(c.TableBuckets)
	case c.StallSweeps < 0:
		return errors.NewValidationError("stall sweeps must not be negative").WithField("StallSweeps").WithValue(c.StallSweeps)
	case c.TeardownAttempts < 1:
		return errors.NewValidationError("teardown attempts must be positive").WithField("TeardownAttempts").WithValue(c.TeardownAttempts)
	case c.TeardownGrace <= 0:
		return errors.NewValidationError("teardown grace period must be positive").WithField("TeardownGrace").WithValue(c.TeardownGrace)
	case c.WorkerPriority < osthread.MinPriority || c.WorkerPriority > osthread.MaxPriority:
		return errors.NewValidationError("worker priority out of range").WithField("WorkerPriority").WithValue(c.WorkerPriority)
	}
	return nil
}

// ID returns the scheduler instance id used in logs and events.
func (s *Scheduler) ID() string {
	return s.id
}

// Workers returns the worker pool.
func (s *Scheduler) Workers() []*Worker {
	return slices.Clone(s.workers)
}

// NumWorkers returns the pool size.
func (s *Scheduler) NumWorkers() int {
	return len(s.workers)
}

// SetWorkerPriority sets the nice value of every worker thread. Workers
// whose priority could not be changed are listed in the returned error; the
// others keep the new value. Lowering the nice value below the process's
// usually needs elevated privileges.
func (s *Scheduler) SetWorkerPriority(nice int) error {
	if nice < osthread.MinPriority || nice > osthread.MaxPriority {
		return errors.NewValidationError("worker priority out of range").WithField("priority").WithValue(nice)
	}

	var (
		failed []string
		errs   []error
	)
	for _, w := range s.workers {
		if err := osthread.SetPriority(w.TID(), nice); err != nil {
			failed = append(failed, w.Name())
			errs = append(errs, err)
		}
	}
	if len(failed) > 0 {
		return errors.NewWorkerError("set worker priority", errors.Join(errs...)).WithWorkers(failed...)
	}
	s.logger.Info("worker priority set", "priority", nice, "workers", len(s.workers))
	return nil
}

func (s *Scheduler) taskError(op string, t Task, cause error) *errors.SchedulerError {
	err := errors.NewSchedulerError(op+" rejected", cause).
		WithScheduler(s.id).
		WithOp(op).
		WithTaskID(t.base().ID())
	if errors.Is(cause, errors.ErrFinalizing) {
		err.WithSeverity(errors.SeverityWarning)
	}
	return err
}

// AddTask registers t and, recursively, all of its dependencies. It never
// blocks on other tasks. Adding a task that was already added is a no-op.
//
// It fails with errors.ErrFinalizing after Finalize, with
// errors.ErrDependencyCycle when t reaches itself through its dependencies,
// and with errors.ErrQueueFull when a queue is out of space.
func (s *Scheduler) AddTask(t Task) error {
	if t == nil {
		return errors.NewValidationError("task must not be nil").WithField("task")
	}
	if s.finalizing.Load() {
		return s.taskError("add", t, errors.ErrFinalizing)
	}
	if err := s.addTask(t, nil); err != nil {
		return err
	}
	s.checkPressure()
	return nil
}

// Submit adds t like AddTask. While the queues are full it sweeps, yields
// and retries until t is accepted, a non-retryable error occurs or ctx is
// done.
func (s *Scheduler) Submit(ctx context.Context, t Task) error {
	for {
		err := s.AddTask(t)
		if err == nil || !errors.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.Sweep()
		osthread.Yield()
	}
}

func (s *Scheduler) addTask(t Task, path []Task) error {
	b := t.base()
	b.ensureID()

	if !b.added.CompareAndSwap(false, true) {
		return s.readd(t)
	}

	deps := t.Dependencies()
	if len(deps) > 0 {
		path = append(path, t)
		for _, d := range deps {
			if d == nil {
				continue
			}
			if i := slices.Index(path, d); i >= 0 {
				b.added.Store(false)
				return s.cycleError(append(path[i:], d))
			}
			d.base().isDependency.Store(true)
			if err := s.addTask(d, path); err != nil {
				b.added.Store(false)
				return err
			}
		}
	}

	if len(deps) == 0 && !b.isDependency.Load() {
		if err := s.scheduleTask(t); err != nil {
			b.added.Store(false)
			return err
		}
		return nil
	}

	if err := s.enqueuePending(t); err != nil {
		b.added.Store(false)
		return s.taskError("add", t, err)
	}
	s.Sweep()
	return nil
}

// readd handles a task that was added before. If it has since become a
// dependency target while not being tracked in the table, it goes back
// through the pending queue so dependents can observe it.
func (s *Scheduler) readd(t Task) error {
	b := t.base()
	if !b.isDependency.Load() || b.hashed.Load() || b.finished.Load() {
		return nil
	}
	if err := s.enqueuePending(t); err != nil {
		return s.taskError("add", t, err)
	}
	s.Sweep()
	return nil
}

// enqueuePending puts t on the pending queue unless it is already waiting
// there.
func (s *Scheduler) enqueuePending(t Task) error {
	b := t.base()
	if !b.queued.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.pending.Enqueue(t); err != nil {
		b.queued.Store(false)
		s.overflow("pending", t)
		return err
	}
	return nil
}

func (s *Scheduler) cycleError(cycle []Task) error {
	ids := make([]uint64, len(cycle))
	for i, t := range cycle {
		ids[i] = t.base().ensureID()
	}
	s.logger.Error("dependency cycle rejected", "path", ids)
	s.bus.Publish(event.NewTaskCycleEvent(s.id, ids))
	return s.taskError("add", cycle[0], fmt.Errorf("%w: %v", errors.ErrDependencyCycle, ids))
}

// scheduleTask marks t scheduled and hands it to an idle worker, or parks it
// on the ready queue. A task is scheduled at most once; on error it is left
// unscheduled.
func (s *Scheduler) scheduleTask(t Task) error {
	b := t.base()
	if !b.scheduled.CompareAndSwap(false, true) {
		return nil
	}
	if s.finalizing.Load() {
		b.scheduled.Store(false)
		return s.taskError("schedule", t, errors.ErrFinalizing)
	}

	w, err := s.nextIdleWorker(t)
	if err != nil {
		b.scheduled.Store(false)
		s.overflow("ready", t)
		return s.taskError("schedule", t, err)
	}
	if w != nil && !w.SetTask(t) {
		// The idle queue handed out a worker that already holds a task.
		s.logger.Error("idle worker already assigned", "worker", w.Name(), "task_id", b.ID())
		s.queuesMu.Lock()
		err := s.ready.Enqueue(t)
		s.queuesMu.Unlock()
		if err != nil {
			b.scheduled.Store(false)
			s.overflow("ready", t)
			return s.taskError("schedule", t, err)
		}
	}
	return nil
}

// nextIdleWorker pops an idle worker for t, or parks t on the ready queue
// when none is idle.
func (s *Scheduler) nextIdleWorker(t Task) (*Worker, error) {
	s.queuesMu.Lock()
	defer s.queuesMu.Unlock()

	if w, ok := s.idle.Dequeue(); ok {
		return w, nil
	}
	if err := s.ready.Enqueue(t); err != nil {
		return nil, err
	}
	return nil, nil
}

// nextReadyTask pops a ready task for w, or parks w on the idle queue when
// none is ready.
func (s *Scheduler) nextReadyTask(w *Worker) Task {
	if s.finalizing.Load() {
		return nil
	}

	s.queuesMu.Lock()
	defer s.queuesMu.Unlock()

	if t, ok := s.ready.Dequeue(); ok {
		return t
	}
	if err := s.idle.Enqueue(w); err != nil {
		// Each worker parks at most once, so this means the idle queue is
		// corrupt rather than undersized.
		w.logger.Error("failed to park worker", "error", err)
	}
	return nil
}

// execute runs t on w and records completion.
func (s *Scheduler) execute(w *Worker, t Task) {
	var pc panics.Catcher
	pc.Try(func() { t.Execute(s) })
	if r := pc.Recovered(); r != nil {
		b := t.base()
		b.setErr(fmt.Errorf("%w: %v", errors.ErrTaskPanicked, r.Value))
		s.panicked.Add(1)
		w.logger.Error("task panicked",
			"task_id", b.ID(),
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack),
		)
		s.bus.Publish(event.NewTaskPanickedEvent(s.id, b.ID(), w.Name(), fmt.Sprint(r.Value)))
	}
	s.complete(t)

	if s.retrySweep.CompareAndSwap(true, false) {
		s.Sweep()
	}
}

// complete marks t executed. Tasks nobody depends on finish here; the sweep
// retires the rest once they report IsExecuted.
func (s *Scheduler) complete(t Task) {
	b := t.base()
	b.executed.Store(true)
	s.executed.Add(1)

	if !b.isDependency.Load() && t.IsExecuted() {
		s.finish(t)
		if !b.hashed.Load() {
			s.release(t)
			return
		}
		s.Sweep()
		return
	}

	if !b.hashed.Load() {
		if err := s.enqueuePending(t); err != nil {
			s.logger.Error("executed task could not be handed to the sweep", "task_id", b.ID(), "error", err)
		}
	}
	s.Sweep()
}

// finish runs t's completion bookkeeping once.
func (s *Scheduler) finish(t Task) {
	if _, r := finishTask(t); r != nil {
		s.logger.Error("OnExecuted panicked",
			"task_id", t.base().ID(),
			"panic", fmt.Sprint(r.Value),
		)
	}
}

// release drops an auto-destroy task once it has finished and left the
// table.
func (s *Scheduler) release(t Task) {
	b := t.base()
	if !b.autoDestroy || !b.finished.Load() || b.hashed.Load() {
		return
	}
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	if r, ok := t.(Releaser); ok {
		r.Release()
	}
}

func (s *Scheduler) overflow(queue string, t Task) {
	id := t.base().ID()
	s.logger.Error("queue overflow", "queue", queue, "task_id", id)
	s.bus.Publish(event.NewQueueOverflowEvent(s.id, queue, id))
}

func (s *Scheduler) checkPressure() {
	n, c := s.ready.Len(), s.ready.Cap()
	switch {
	case n >= c:
		s.fullLog.Do(func() {
			s.logger.Error("scheduler is full", "ready", n, "capacity", c)
			s.bus.Publish(event.NewSchedulerPressureEvent(s.id, event.PressureFull, n, c))
		})
	case n >= c/2:
		s.halfFullLog.Do(func() {
			s.logger.Warn("scheduler is half-full", "ready", n, "capacity", c)
			s.bus.Publish(event.NewSchedulerPressureEvent(s.id, event.PressureHalfFull, n, c))
		})
	}
}

// NumTasks returns the number of tasks waiting on the ready queue.
func (s *Scheduler) NumTasks() int {
	return s.ready.Len()
}

// IsFull reports whether the ready queue is at capacity.
func (s *Scheduler) IsFull() bool {
	return s.ready.Len() >= s.ready.Cap()
}

// IsHalfFull reports whether the ready queue is at least half full.
func (s *Scheduler) IsHalfFull() bool {
	return s.ready.Len() >= s.ready.Cap()/2
}

// Stats is a point-in-time snapshot of scheduler activity.
type Stats struct {
	Workers  int
	Idle     int
	Pending  int
	Ready    int
	Hashed   int
	Sweeps   uint64
	Executed uint64
	Panicked uint64
}

// Stats returns a snapshot. Queue depths are read without locks.
func (s *Scheduler) Stats() Stats {
	s.sweepMu.Lock()
	hashed := s.table.len()
	s.sweepMu.Unlock()

	return Stats{
		Workers:  len(s.workers),
		Idle:     s.idle.Len(),
		Pending:  s.pending.Len(),
		Ready:    s.ready.Len(),
		Hashed:   hashed,
		Sweeps:   s.sweeps.Load(),
		Executed: s.executed.Load(),
		Panicked: s.panicked.Load(),
	}
}

// Finalize stops the scheduler from accepting or scheduling work. Tasks
// already running are not interrupted.
func (s *Scheduler) Finalize() {
	if s.finalizing.CompareAndSwap(false, true) {
		s.logger.Info("scheduler finalizing")
	}
}

// Finalizing reports whether Finalize has been called.
func (s *Scheduler) Finalizing() bool {
	return s.finalizing.Load()
}

// Shutdown finalizes the scheduler, asks every worker to exit and waits for
// them, one grace period per attempt, for up to the configured number of
// attempts. Workers still running after that are reported in an error
// wrapping errors.ErrTeardownTimeout. Shutdown is idempotent.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.teardown(ctx)
	})
	return s.shutdownErr
}

func (s *Scheduler) teardown(ctx context.Context) error {
	s.Finalize()
	log := s.logger.WithComponent("teardown")

	for _, w := range s.workers {
		w.ForceExit(false)
		w.SetTask(nil)
	}

	remaining := s.workers
	attempts := 0
	for attempts < s.cfg.TeardownAttempts && len(remaining) > 0 {
		attempts++
		remaining = s.joinWorkers(ctx, remaining)
		if len(remaining) == 0 {
			break
		}
		log.Warn("workers still running after grace period",
			"attempt", attempts,
			"max_attempts", s.cfg.TeardownAttempts,
			"workers", workerNames(remaining),
			"error", errors.NewTimeoutError("joining workers", s.cfg.TeardownGrace),
		)
		if ctx.Err() != nil {
			break
		}
	}

	s.clearQueues()

	joined := len(s.workers) - len(remaining)
	leaked := workerNames(remaining)
	s.bus.Publish(event.NewSchedulerStoppedEvent(s.id, joined, leaked))

	if len(remaining) > 0 {
		for _, name := range leaked {
			s.bus.Publish(event.NewWorkerLeakedEvent(s.id, name, attempts))
		}
		log.Error("leaking workers that did not stop", "workers", leaked, "attempts", attempts)
		waited := s.cfg.TeardownGrace * time.Duration(attempts)
		return errors.NewWorkerError("workers did not stop",
			errors.NewTimeoutError("joining workers", waited).WithCause(errors.ErrTeardownTimeout)).
			WithWorkers(leaked...).
			WithAttempts(attempts)
	}

	log.Info("scheduler stopped", "workers", joined)
	return nil
}

// joinWorkers waits one grace period for ws to stop and returns those still
// running.
func (s *Scheduler) joinWorkers(ctx context.Context, ws []*Worker) []*Worker {
	timer := time.NewTimer(s.cfg.TeardownGrace)
	defer timer.Stop()

	expired := false
	for _, w := range ws {
		if expired {
			break
		}
		select {
		case <-w.handle.Done():
		case <-timer.C:
			expired = true
		case <-ctx.Done():
			expired = true
		}
	}

	var remaining []*Worker
	for _, w := range ws {
		if w.IsRunning() {
			remaining = append(remaining, w)
			continue
		}
		if err := w.handle.Join(context.Background()); err != nil {
			w.logger.Error("worker thread failed", "error", err)
		}
	}
	return remaining
}

// clearQueues drops every queued and hashed task. Only called once the
// scheduler is finalizing.
func (s *Scheduler) clearQueues() {
	s.sweepMu.Lock()
	abandoned := len(s.table.clear())
	s.sweepMu.Unlock()

	s.queuesMu.Lock()
	abandoned += len(s.ready.Drain())
	s.idle.Drain()
	s.queuesMu.Unlock()
	for _, t := range s.pending.Drain() {
		t.base().queued.Store(false)
		abandoned++
	}

	if abandoned > 0 {
		s.logger.Info("abandoned unscheduled tasks", "count", abandoned)
	}
}

func workerNames(ws []*Worker) []string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name()
	}
	return names
}
