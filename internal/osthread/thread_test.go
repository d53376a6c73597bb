package osthread

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/taskgraph/internal/logging"
)

// join waits up to d for h to stop.
func join(h *Handle, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return h.Join(ctx)
}

func TestSpawnRunsAndJoins(t *testing.T) {
	var ran atomic.Bool
	h := Spawn("tg-test", nil, func() {
		ran.Store(true)
	})

	if err := join(h, 5 * time.Second); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if !ran.Load() {
		t.Error("closure did not run")
	}
	if h.Running() {
		t.Error("Running() = true after Join")
	}
	if h.Name() != "tg-test" {
		t.Errorf("Name() = %q, want tg-test", h.Name())
	}
}

func TestJoinTimesOutWhileRunning(t *testing.T) {
	release := make(chan struct{})
	h := Spawn("tg-block", nil, func() {
		<-release
	})

	err := join(h, 20 * time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Join on blocked thread = %v, want DeadlineExceeded", err)
	}
	if !h.Running() {
		t.Error("Running() = false while closure is blocked")
	}

	close(release)
	if err := join(h, 5 * time.Second); err != nil {
		t.Errorf("Join after release failed: %v", err)
	}
}

func TestJoinReportsPanic(t *testing.T) {
	h := Spawn("tg-panic", nil, func() {
		panic("boom")
	})

	err := join(h, 5 * time.Second)
	if err == nil {
		t.Fatal("expected panic to surface from Join")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Join error = %q, want it to mention the panic value", err)
	}
	if err2 := join(h, time.Second); err2 == nil || err2.Error() != err.Error() {
		t.Errorf("second Join = %v, want %v", err2, err)
	}
}

func TestCurrent(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread registry is keyed by linux thread ids")
	}

	if Current() != nil {
		t.Error("Current() should be nil outside a spawned thread")
	}

	got := make(chan *Info, 1)
	name := make(chan string, 1)
	h := Spawn("tg-current", nil, func() {
		got <- Current()
		n, _ := threadName()
		name <- n
	})
	if err := join(h, 5 * time.Second); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	info := <-got
	if info == nil {
		t.Fatal("Current() returned nil inside a spawned thread")
	}
	if info.Name != "tg-current" {
		t.Errorf("Info.Name = %q, want tg-current", info.Name)
	}
	if info.TID == 0 {
		t.Error("Info.TID should be set")
	}
	if h.Info() != info {
		t.Error("Handle.Info() should return the registered descriptor")
	}
	if n := <-name; n != "tg-current" {
		t.Errorf("kernel thread name = %q, want tg-current", n)
	}
}

func TestSpawnTruncatesLongNames(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread naming is only observable on linux")
	}

	name := make(chan string, 1)
	h := Spawn("tg-a-very-long-thread-name", nil, func() {
		n, _ := threadName()
		name <- n
	})
	if err := join(h, 5 * time.Second); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if n := <-name; n != "tg-a-very-long-" {
		t.Errorf("kernel thread name = %q, want the first 15 bytes", n)
	}
}

func TestSpawnLogsNamingFailure(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread naming is only attempted on linux")
	}

	var buf bytes.Buffer
	log := logging.NewWriterLogger(&buf, logging.LevelDebug)
	h := Spawn("tg-\x00bad", log, func() {})
	if err := join(h, 5*time.Second); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "failed to name thread") != 1 {
		t.Errorf("want one naming failure record, got:\n%s", out)
	}
	if !strings.Contains(out, `"level":"DEBUG"`) {
		t.Errorf("naming failure should be logged at debug level:\n%s", out)
	}
}

func TestSetPriority(t *testing.T) {
	if err := SetPriority(0, MaxPriority+1); err == nil {
		t.Error("SetPriority accepted a nice value above the maximum")
	}
	if err := SetPriority(0, MinPriority-1); err == nil {
		t.Error("SetPriority accepted a nice value below the minimum")
	}
	if err := SetPriority(0, 5); err != nil {
		t.Errorf("SetPriority(0, 5) = %v, want no-op", err)
	}
	if runtime.GOOS != "linux" {
		t.Skip("per-thread priorities are only applied on linux")
	}

	release := make(chan struct{})
	tid := make(chan int, 1)
	h := Spawn("tg-nice", nil, func() {
		tid <- Current().TID
		<-release
	})
	id := <-tid

	// Raising the nice value never needs privileges.
	if err := SetPriority(id, MaxPriority); err != nil {
		t.Fatalf("SetPriority() = %v", err)
	}
	if got, err := Priority(id); err != nil || got != MaxPriority {
		t.Errorf("Priority() = %d, %v; want %d", got, err, MaxPriority)
	}

	close(release)
	if err := join(h, 5*time.Second); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
}

func TestLogicalProcessors(t *testing.T) {
	if n := LogicalProcessors(); n < 1 {
		t.Errorf("LogicalProcessors() = %d, want >= 1", n)
	}
}

func TestYieldDoesNotBlock(t *testing.T) {
	done := make(chan struct{})
	go func() {
		for range 100 {
			Yield()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Yield loop did not finish")
	}
}
