package scheduler

import (
	"context"
	"sync"
)

// Counter is a join counter shared by a group of tasks. Each task joined to
// it increments it, and decrements it once its completion bookkeeping has
// run. Wait blocks until the counter is back to zero.
//
// The zero value is ready to use. A Counter may be reused once it reaches
// zero.
type Counter struct {
	mu   sync.Mutex
	n    int64
	zero chan struct{} // closed when n drops to 0; nil while n has never been > 0
}

// NewCounter returns a Counter at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Add adds delta, which may be negative. It panics if the counter would go
// negative.
func (c *Counter) Add(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.n
	c.n += delta
	switch {
	case c.n < 0:
		panic("scheduler: negative Counter")
	case prev == 0 && c.n > 0:
		c.zero = make(chan struct{})
	case prev > 0 && c.n == 0:
		close(c.zero)
	}
}

// Done decrements the counter by one.
func (c *Counter) Done() {
	c.Add(-1)
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Wait blocks until the counter is zero or ctx is done.
func (c *Counter) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.n == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := c.zero
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
