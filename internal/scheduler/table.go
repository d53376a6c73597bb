package scheduler

import (
	"fortio.org/safecast"

	"github.com/Iron-Ham/taskgraph/internal/handoff"
)

// activeTable holds the tasks that wait for dependencies or are still
// needed as dependency targets. Buckets are chosen by task id; collisions
// chain within a bucket. The bucket count is fixed at construction.
//
// All methods require the sweep lock.
type activeTable struct {
	buckets [][]Task
	mask    uint64
	size    int
}

func newActiveTable(buckets int) *activeTable {
	n := handoff.RoundUpPow2(buckets)
	return &activeTable{
		buckets: make([][]Task, n),
		mask:    uint64(n - 1),
	}
}

func (t *activeTable) bucketOf(id uint64) int {
	idx, err := safecast.Conv[int](id & t.mask)
	if err != nil {
		// mask < len(buckets), which always fits in an int
		panic(err)
	}
	return idx
}

// insert links task into its bucket unless it is already hashed.
func (t *activeTable) insert(task Task) bool {
	b := task.base()
	if !b.hashed.CompareAndSwap(false, true) {
		return false
	}
	i := t.bucketOf(b.ensureID())
	t.buckets[i] = append(t.buckets[i], task)
	t.size++
	return true
}

// contains reports whether task is linked in the table.
func (t *activeTable) contains(task Task) bool {
	b := task.base()
	if !b.hashed.Load() {
		return false
	}
	for _, other := range t.buckets[t.bucketOf(b.ID())] {
		if other == task {
			return true
		}
	}
	return false
}

// sweepBucket calls visit for every task in bucket i and unlinks the tasks
// for which visit returns true. The bucket is rebuilt only when something is
// removed, so visit may look up other tasks while it runs.
func (t *activeTable) sweepBucket(i int, visit func(Task) bool) (removed []Task) {
	bucket := t.buckets[i]
	if len(bucket) == 0 {
		return nil
	}

	var kept []Task
	for j, task := range bucket {
		if !visit(task) {
			if kept != nil {
				kept = append(kept, task)
			}
			continue
		}
		if kept == nil {
			kept = make([]Task, j, len(bucket))
			copy(kept, bucket[:j])
		}
		removed = append(removed, task)
	}
	if removed == nil {
		return nil
	}

	t.buckets[i] = kept
	t.size -= len(removed)
	for _, task := range removed {
		task.base().hashed.Store(false)
	}
	return removed
}

func (t *activeTable) len() int {
	return t.size
}

func (t *activeTable) bucketCount() int {
	return len(t.buckets)
}

// clear unlinks every task.
func (t *activeTable) clear() []Task {
	var all []Task
	for i, bucket := range t.buckets {
		for _, task := range bucket {
			task.base().hashed.Store(false)
		}
		all = append(all, bucket...)
		t.buckets[i] = nil
	}
	t.size = 0
	return all
}
