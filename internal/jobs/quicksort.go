package jobs

import (
	"context"
	"slices"

	"fortio.org/safecast"

	"github.com/Iron-Ham/taskgraph/internal/scheduler"
)

// DefaultSortCutoff is the partition size below which QuickSortTask sorts
// in place instead of forking.
const DefaultSortCutoff = 4096

// QuickSortTask sorts its slice by partitioning it and forking one subtask
// per half. All tasks of one sort share a join counter, so the sort is done
// when the counter reaches zero.
type QuickSortTask struct {
	scheduler.Base
	data   []int32
	cutoff int
}

// NewQuickSortTask returns the root task sorting data. The task is joined to
// c, as are the subtasks it forks. A cutoff below 2 uses DefaultSortCutoff.
func NewQuickSortTask(data []int32, cutoff int, c *scheduler.Counter) *QuickSortTask {
	if cutoff < 2 {
		cutoff = DefaultSortCutoff
	}
	t := &QuickSortTask{data: data, cutoff: cutoff}
	t.JoinCounter(c)
	return t
}

// Execute partitions the slice and forks both halves. With a nil scheduler,
// or when the scheduler refuses a subtask, the subtask runs inline.
func (t *QuickSortTask) Execute(s *scheduler.Scheduler) {
	data := t.data
	for len(data) > t.cutoff {
		lt, gt := partition(data)
		left, right := data[:lt], data[gt:]

		// Fork the smaller side and keep the larger one.
		if len(left) > len(right) {
			left, right = right, left
		}
		sub := &QuickSortTask{data: left, cutoff: t.cutoff}
		sub.JoinCounter(t.Counter())
		if s == nil || s.AddTask(sub) != nil {
			scheduler.Run(sub)
		}
		data = right
	}
	slices.Sort(data)
}

// partition reorders data into values below, equal to and above a
// median-of-three pivot. data[lt:gt] holds the pivot values.
func partition(data []int32) (lt, gt int) {
	a, b, c := data[0], data[len(data)/2], data[len(data)-1]
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	pivot := max(a, b)

	lt, i, gt := 0, 0, len(data)
	for i < gt {
		switch v := data[i]; {
		case v < pivot:
			data[lt], data[i] = data[i], data[lt]
			lt++
			i++
		case v > pivot:
			gt--
			data[i], data[gt] = data[gt], data[i]
		default:
			i++
		}
	}
	return lt, gt
}

// RandomInts returns n pseudo-random non-negative values from the linear
// congruential generator used by the sort benchmark. The sequence depends
// only on seed.
func RandomInts(n int, seed uint32) []int32 {
	out := make([]int32, n)
	random := seed
	for i := range out {
		v, err := safecast.Conv[int32](random & 0x7fffffff)
		if err != nil {
			// masked to 31 bits
			panic(err)
		}
		out[i] = v
		random = random*196314165 + 907633515
	}
	return out
}

// SortST sorts data on the calling goroutine.
func SortST(data []int32, cutoff int) {
	scheduler.Run(NewQuickSortTask(data, cutoff, scheduler.NewCounter()))
}

// SortMT sorts data on s and waits for every forked task.
func SortMT(ctx context.Context, s *scheduler.Scheduler, data []int32, cutoff int) error {
	c := scheduler.NewCounter()
	root := NewQuickSortTask(data, cutoff, c)
	if err := s.Submit(ctx, root); err != nil {
		return err
	}
	return c.Wait(ctx)
}
