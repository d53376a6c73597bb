package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/taskgraph/internal/osthread"
	"github.com/Iron-Ham/taskgraph/internal/scheduler"
)

// Recorder collects the spans of one run.
type Recorder struct {
	clock atomic.Int64
	mu    sync.Mutex
	spans map[string]Span
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{spans: make(map[string]Span)}
}

func (r *Recorder) tick() int64 {
	return r.clock.Add(1)
}

func (r *Recorder) record(id string, span Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans[id] = span
}

// Spans returns a copy of the recorded spans by node ID.
func (r *Recorder) Spans() map[string]Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Span, len(r.spans))
	for id, s := range r.spans {
		out[id] = s
	}
	return out
}

// NodeTask executes one plan node.
type NodeTask struct {
	scheduler.Base
	node     Node
	recorder *Recorder
	sink     atomic.Uint64
}

// Node returns the plan node the task executes.
func (t *NodeTask) Node() Node {
	return t.node
}

// Execute performs the node's busy work and records its span.
func (t *NodeTask) Execute(*scheduler.Scheduler) {
	span := Span{Start: t.recorder.tick()}
	if info := osthread.Current(); info != nil {
		span.Worker = info.Name
	}

	// xorshift rounds keep the node busy without touching shared state.
	x := uint64(len(t.node.ID)) | 1
	for range t.node.Work * 1000 {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	t.sink.Store(x)

	span.End = t.recorder.tick()
	t.recorder.record(t.node.ID, span)
}

// Build turns a validated plan into tasks joined to c, in plan order.
func Build(p *Plan, rec *Recorder, c *scheduler.Counter) ([]*NodeTask, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]*NodeTask, len(p.Nodes))
	tasks := make([]*NodeTask, len(p.Nodes))
	for i, n := range p.Nodes {
		t := &NodeTask{node: n, recorder: rec}
		t.JoinCounter(c)
		byID[n.ID] = t
		tasks[i] = t
	}
	for _, t := range tasks {
		for _, dep := range t.node.DependsOn {
			t.DependsOn(byID[dep])
		}
	}
	return tasks, nil
}

// Result summarizes a run.
type Result struct {
	Plan     string
	Nodes    int
	Edges    int
	Levels   int
	Workers  map[string]int
	Duration time.Duration
	Spans    map[string]Span
}

// Run executes p on s, waits for every node and verifies the execution
// order. Nodes are added in reverse plan order, so most of them are first
// reached as dependencies of later nodes.
func Run(ctx context.Context, s *scheduler.Scheduler, p *Plan) (*Result, error) {
	rec := NewRecorder()
	c := scheduler.NewCounter()
	tasks, err := Build(p, rec, c)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for i := len(tasks) - 1; i >= 0; i-- {
		if err := s.Submit(ctx, tasks[i]); err != nil {
			return nil, err
		}
	}
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		Plan:     p.Name,
		Nodes:    len(p.Nodes),
		Edges:    p.Edges(),
		Levels:   len(p.Levels()),
		Workers:  make(map[string]int),
		Duration: time.Since(start),
		Spans:    rec.Spans(),
	}
	for _, span := range res.Spans {
		res.Workers[span.Worker]++
	}
	if err := p.Verify(res.Spans); err != nil {
		return res, err
	}
	return res, nil
}
