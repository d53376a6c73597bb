// Package osthread runs closures on dedicated OS threads and keeps a small
// registry describing them.
//
// Every thread started with Spawn locks its goroutine to the underlying OS
// thread for its whole life and never unlocks it, so the OS thread exits
// together with the closure. The descriptor of the calling thread is
// available through Current.
package osthread

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Iron-Ham/taskgraph/internal/logging"
)

// Info describes a thread started with Spawn.
type Info struct {
	Name    string
	TID     int
	Started time.Time
}

// registry maps OS thread ids to descriptors. Only threads started via Spawn
// are registered.
var registry sync.Map

// Current returns the descriptor of the calling OS thread, or nil when the
// caller is not running on a thread started with Spawn.
func Current() *Info {
	tid := gettid()
	if tid == 0 {
		return nil
	}
	if v, ok := registry.Load(tid); ok {
		return v.(*Info)
	}
	return nil
}

// Handle refers to a spawned thread.
type Handle struct {
	name string
	wg   conc.WaitGroup
	done chan struct{}

	mu   sync.Mutex
	info *Info
	err  error
}

// Spawn starts fn on a new goroutine locked to its own OS thread. The thread
// is named name where the platform supports it; a naming failure is logged
// to log at debug level. log may be nil.
func Spawn(name string, log *logging.Logger, fn func()) *Handle {
	if log == nil {
		log = logging.NopLogger()
	}
	h := &Handle{name: name, done: make(chan struct{})}
	started := make(chan struct{})

	h.wg.Go(func() {
		defer close(h.done)
		runtime.LockOSThread()

		info := &Info{Name: name, TID: gettid(), Started: time.Now()}
		if info.TID != 0 {
			registry.Store(info.TID, info)
			defer registry.Delete(info.TID)
		}
		if err := setName(name); err != nil {
			log.Debug("failed to name thread", "thread", name, "tid", info.TID, "error", err)
		}

		h.mu.Lock()
		h.info = info
		h.mu.Unlock()
		close(started)

		fn()
	})

	<-started
	return h
}

// Name returns the name given at Spawn.
func (h *Handle) Name() string {
	return h.name
}

// Info returns the descriptor registered by the thread.
func (h *Handle) Info() *Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

// Running reports whether the closure has not returned yet.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done is closed once the closure has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Join waits for the thread to stop or ctx to end. A panic raised by the
// closure is returned as an error; Join returns the same result on every
// call once the thread has stopped.
func (h *Handle) Join(ctx context.Context) error {
	select {
	case <-h.done:
	case <-ctx.Done():
		return fmt.Errorf("join %s: %w", h.name, ctx.Err())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		if r := h.wg.WaitAndRecover(); r != nil {
			h.err = fmt.Errorf("thread %s panicked: %w", h.name, r.AsError())
		}
	}
	return h.err
}

// Yield gives up the processor so other runnable goroutines and threads can
// make progress.
func Yield() {
	runtime.Gosched()
}

var procsOnce sync.Once

// LogicalProcessors returns the number of logical processors this process
// may use. The first call aligns GOMAXPROCS with the container CPU quota.
func LogicalProcessors() int {
	procsOnce.Do(func() {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	})
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// Nice values accepted by SetPriority.
const (
	MinPriority = -20
	MaxPriority = 19
)

// SetPriority sets the nice value of the OS thread tid, from MinPriority
// (most favored) to MaxPriority. Lowering a thread's nice value usually
// needs elevated privileges. It is a no-op where per-thread priorities are
// unsupported or tid is 0.
func SetPriority(tid, nice int) error {
	if nice < MinPriority || nice > MaxPriority {
		return fmt.Errorf("priority %d out of range [%d, %d]", nice, MinPriority, MaxPriority)
	}
	if tid == 0 {
		return nil
	}
	if err := setPriority(tid, nice); err != nil {
		return fmt.Errorf("set priority of thread %d: %w", tid, err)
	}
	return nil
}

// Priority returns the nice value of the OS thread tid, or 0 where
// per-thread priorities are unsupported.
func Priority(tid int) (int, error) {
	if tid == 0 {
		return 0, nil
	}
	return getPriority(tid)
}
