// Package handoff provides a fixed-capacity FIFO used to pass work items
// between threads.
//
// A Queue is a circular buffer of slots guarded by a mutex. Its capacity is
// rounded up to a power of two at Init and never changes. When the slot
// under the write cursor still holds an unread item the queue is full, and
// Enqueue returns an error instead of growing or overwriting.
package handoff

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/taskgraph/internal/errors"
)

type slot[T any] struct {
	item T
	full bool
}

// Queue is a bounded, mutex-guarded FIFO. The zero value must be initialized
// with Init before use; New does both.
type Queue[T any] struct {
	mu    sync.Mutex
	name  string
	slots []slot[T]
	mask  int
	read  int
	write int
	count atomic.Int64
}

// New creates a Queue named name holding at least capacity items.
func New[T any](name string, capacity int) *Queue[T] {
	q := &Queue[T]{}
	// A fresh queue cannot be reinitialized, so Init cannot fail here.
	_ = q.Init(name, capacity)
	return q
}

// Init sizes the queue to the next power of two >= requested (minimum 1).
// Re-initialization is not supported.
func (q *Queue[T]) Init(name string, requested int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.slots != nil {
		return errors.NewQueueError("init rejected", errors.ErrQueueReinitialized).
			WithQueue(q.name).WithCapacity(len(q.slots)).WithSeverity(errors.SeverityCritical)
	}

	size := RoundUpPow2(requested)
	q.name = name
	q.slots = make([]slot[T], size)
	q.mask = size - 1
	return nil
}

// RoundUpPow2 returns the smallest power of two >= n, or 1 when n <= 1.
func RoundUpPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Enqueue appends item at the write cursor. It fails with an error wrapping
// errors.ErrQueueFull, leaving every stored item untouched, when the queue
// already holds Cap() unread items.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.slots == nil {
		return errors.NewQueueError("enqueue rejected", errors.ErrQueueNotInitialized).
			WithQueue(q.name).WithSeverity(errors.SeverityCritical)
	}

	s := &q.slots[q.write]
	if s.full {
		return errors.NewQueueError("enqueue rejected", errors.ErrQueueFull).
			WithQueue(q.name).WithCapacity(len(q.slots))
	}
	s.item = item
	s.full = true
	q.write = (q.write + 1) & q.mask
	q.count.Add(1)
	return nil
}

// Dequeue removes and returns the item at the read cursor. The second result
// is false when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.slots == nil {
		return zero, false
	}

	s := &q.slots[q.read]
	if !s.full {
		return zero, false
	}
	item := s.item
	s.item = zero
	s.full = false
	q.read = (q.read + 1) & q.mask
	q.count.Add(-1)
	return item, true
}

// HasElement reports whether the queue looked non-empty at the time of the
// call. It takes no lock and is only a hint for fast pre-checks.
func (q *Queue[T]) HasElement() bool {
	return q.count.Load() > 0
}

// Len returns the number of unread items. Like HasElement it is a snapshot.
func (q *Queue[T]) Len() int {
	return int(q.count.Load())
}

// Cap returns the rounded capacity, or 0 before Init.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.slots)
}

// Name returns the name given at Init.
func (q *Queue[T]) Name() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.name
}

// Drain removes every unread item and returns them in FIFO order.
func (q *Queue[T]) Drain() []T {
	var items []T
	for {
		item, ok := q.Dequeue()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}
