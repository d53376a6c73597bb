package handoff

import (
	"sync"
	"testing"

	"github.com/Iron-Ham/taskgraph/internal/errors"
)

func TestRoundUpPow2(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{8, 8},
		{1000, 1024},
		{1025, 2048},
	}
	for _, tt := range tests {
		if got := RoundUpPow2(tt.in); got != tt.want {
			t.Errorf("RoundUpPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := New[int]("fifo", 16)

	for i := range 16 {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", i, err)
		}
	}
	if q.Len() != 16 {
		t.Errorf("Len() = %d, want 16", q.Len())
	}

	for i := range 16 {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() #%d reported empty", i)
		}
		if got != i {
			t.Errorf("Dequeue() #%d = %d, want %d", i, got, i)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue() on empty queue should report false")
	}
	if q.HasElement() {
		t.Error("HasElement() = true on empty queue")
	}
}

func TestQueue_FIFOAcrossWrap(t *testing.T) {
	q := New[int]("wrap", 4)

	next := 0
	want := 0
	for round := range 10 {
		for range 3 {
			if err := q.Enqueue(next); err != nil {
				t.Fatalf("round %d: Enqueue(%d) failed: %v", round, next, err)
			}
			next++
		}
		for range 3 {
			got, ok := q.Dequeue()
			if !ok || got != want {
				t.Fatalf("round %d: Dequeue() = %d,%v want %d,true", round, got, ok, want)
			}
			want++
		}
	}
}

func TestQueue_OverflowDoesNotCorrupt(t *testing.T) {
	q := New[string]("ready", 3)
	if q.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4", q.Cap())
	}

	items := []string{"a", "b", "c", "d"}
	for _, it := range items {
		if err := q.Enqueue(it); err != nil {
			t.Fatalf("Enqueue(%q) failed: %v", it, err)
		}
	}

	err := q.Enqueue("overflow")
	if err == nil {
		t.Fatal("Enqueue into a full queue should fail")
	}
	if !errors.Is(err, errors.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	var qErr *errors.QueueError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected *QueueError, got %T", err)
	}
	if qErr.Queue != "ready" || qErr.Capacity != 4 {
		t.Errorf("QueueError context = (%q, %d), want (ready, 4)", qErr.Queue, qErr.Capacity)
	}
	if !errors.IsRetryable(err) {
		t.Error("overflow should be retryable")
	}

	for _, want := range items {
		got, ok := q.Dequeue()
		if !ok || got != want {
			t.Errorf("Dequeue() = %q,%v want %q,true", got, ok, want)
		}
	}

	// Space is available again after draining.
	if err := q.Enqueue("e"); err != nil {
		t.Errorf("Enqueue after drain failed: %v", err)
	}
}

func TestQueue_Uninitialized(t *testing.T) {
	var q Queue[int]

	if err := q.Enqueue(1); !errors.Is(err, errors.ErrQueueNotInitialized) {
		t.Errorf("Enqueue on zero queue = %v, want ErrQueueNotInitialized", err)
	} else if errors.GetSeverity(err) != errors.SeverityCritical || errors.IsRetryable(err) {
		t.Errorf("misuse error should be critical and not retryable, got %v", errors.GetSeverity(err))
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue on zero queue should report empty")
	}
	if q.Cap() != 0 {
		t.Errorf("Cap() = %d, want 0", q.Cap())
	}
}

func TestQueue_Reinit(t *testing.T) {
	var q Queue[int]
	if err := q.Init("idle", 8); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := q.Init("idle", 16); !errors.Is(err, errors.ErrQueueReinitialized) {
		t.Errorf("second Init = %v, want ErrQueueReinitialized", err)
	} else if errors.GetSeverity(err) != errors.SeverityCritical {
		t.Errorf("GetSeverity() = %v, want critical", errors.GetSeverity(err))
	}
	if q.Cap() != 8 {
		t.Errorf("Cap() = %d after rejected re-init, want 8", q.Cap())
	}
	if q.Name() != "idle" {
		t.Errorf("Name() = %q, want idle", q.Name())
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[int]("pending", 8)
	for i := range 5 {
		_ = q.Enqueue(i)
	}
	got := q.Drain()
	if len(got) != 5 {
		t.Fatalf("Drain() returned %d items, want 5", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("Drain()[%d] = %d, want %d", i, v, i)
		}
	}
	if q.HasElement() {
		t.Error("queue should be empty after Drain")
	}
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	const producers = 8
	const perProducer = 500
	q := New[int]("mpmc", producers*perProducer)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perProducer {
				if err := q.Enqueue(p*perProducer + i); err != nil {
					t.Errorf("Enqueue failed: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make([]bool, producers*perProducer)
	var mu sync.Mutex
	var cwg sync.WaitGroup
	for range 4 {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("item %d dequeued twice", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	cwg.Wait()

	for v, ok := range seen {
		if !ok {
			t.Errorf("item %d was never dequeued", v)
		}
	}
}

func TestQueue_PerProducerOrder(t *testing.T) {
	const producers = 4
	const perProducer = 200
	q := New[[2]int]("order", producers*perProducer)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perProducer {
				_ = q.Enqueue([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		if v[1] <= last[v[0]] {
			t.Fatalf("producer %d: item %d dequeued after %d", v[0], v[1], last[v[0]])
		}
		last[v[0]] = v[1]
	}
}
