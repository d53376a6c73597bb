// Package testutil provides testing utilities for taskgraph tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// DefaultTimeout bounds every wait in this package. It is generous so that
// slow CI machines running with -race do not produce spurious failures.
const DefaultTimeout = 10 * time.Second

// Waiter is anything that blocks until it is done or ctx ends, such as a
// join counter or a single task.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Wait blocks until w is done and fails the test after DefaultTimeout.
func Wait(t *testing.T, w Waiter, what string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	if err := w.Wait(ctx); err != nil {
		t.Fatalf("%s did not finish: %v", what, err)
	}
}

// Eventually polls cond until it returns true and fails the test with msg
// after DefaultTimeout.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(time.Millisecond)
	}
}

// WriteFile creates a file named name with content in a fresh temporary
// directory and returns its path. The directory is removed when the test
// completes.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
