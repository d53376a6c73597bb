package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCounter_WaitAtZero(t *testing.T) {
	c := NewCounter()
	if err := c.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on a fresh counter = %v, want nil", err)
	}
}

func TestCounter_AddDone(t *testing.T) {
	c := NewCounter()
	c.Add(3)
	if got := c.Value(); got != 3 {
		t.Fatalf("Value() = %d, want 3", got)
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Done()
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestCounter_WaitHonorsContext(t *testing.T) {
	c := NewCounter()
	c.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestCounter_Reuse(t *testing.T) {
	c := NewCounter()
	for round := range 3 {
		c.Add(2)
		c.Done()
		c.Done()
		if err := c.Wait(context.Background()); err != nil {
			t.Fatalf("round %d: Wait() = %v", round, err)
		}
	}
}

func TestCounter_NegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Done() below zero did not panic")
		}
	}()
	NewCounter().Done()
}
