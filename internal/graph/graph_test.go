package graph

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/taskgraph/internal/errors"
	"github.com/Iron-Ham/taskgraph/internal/scheduler"
	"github.com/Iron-Ham/taskgraph/internal/testutil"
)

func diamond() *Plan {
	return &Plan{
		Name: "diamond",
		Nodes: []Node{
			{ID: "a", DependsOn: []string{"b", "c"}},
			{ID: "b", DependsOn: []string{"d"}, Priority: 2},
			{ID: "c", DependsOn: []string{"d"}, Priority: 1},
			{ID: "d", Work: 3},
		},
	}
}

func newScheduler(t *testing.T, workers int) *scheduler.Scheduler {
	t.Helper()
	cfg := scheduler.DefaultConfig()
	cfg.Workers = workers
	cfg.QueueCapacity = 64
	s, err := scheduler.New(cfg)
	if err != nil {
		t.Fatalf("scheduler.New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    *Plan
		wantErr error
	}{
		{"valid", diamond(), nil},
		{"empty", &Plan{Name: "empty"}, nil},
		{
			name:    "empty id",
			plan:    &Plan{Nodes: []Node{{ID: ""}}},
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "duplicate id",
			plan:    &Plan{Nodes: []Node{{ID: "a"}, {ID: "a"}}},
			wantErr: &errors.AlreadyExistsError{},
		},
		{
			name:    "unknown dependency",
			plan:    &Plan{Nodes: []Node{{ID: "a", DependsOn: []string{"ghost"}}}},
			wantErr: &errors.NotFoundError{},
		},
		{
			name: "cycle",
			plan: &Plan{Nodes: []Node{
				{ID: "a", DependsOn: []string{"c"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"b"}},
				{ID: "free"},
			}},
			wantErr: errors.ErrDependencyCycle,
		},
		{
			name:    "self dependency",
			plan:    &Plan{Nodes: []Node{{ID: "a", DependsOn: []string{"a"}}}},
			wantErr: errors.ErrDependencyCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlan_Levels(t *testing.T) {
	got := diamond().Levels()
	want := [][]string{{"d"}, {"c", "b"}, {"a"}}
	if len(got) != len(want) {
		t.Fatalf("Levels() = %v, want %v", got, want)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("level %d = %v, want %v", i, got[i], want[i])
		}
	}

	if levels := (&Plan{}).Levels(); levels != nil {
		t.Errorf("Levels() of an empty plan = %v", levels)
	}
}

func TestPlan_Verify(t *testing.T) {
	p := diamond()
	good := map[string]Span{
		"d": {Start: 1, End: 2},
		"b": {Start: 3, End: 5},
		"c": {Start: 4, End: 6},
		"a": {Start: 7, End: 8},
	}
	if err := p.Verify(good); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}

	early := map[string]Span{
		"d": {Start: 1, End: 4},
		"b": {Start: 3, End: 5},
		"c": {Start: 5, End: 6},
		"a": {Start: 7, End: 8},
	}
	if err := p.Verify(early); !errors.Is(err, errors.ErrVerificationFailed) {
		t.Errorf("Verify() = %v, want ErrVerificationFailed", err)
	}

	missing := map[string]Span{"d": {Start: 1, End: 2}}
	if err := p.Verify(missing); !errors.Is(err, errors.ErrVerificationFailed) {
		t.Errorf("Verify() with missing spans = %v, want ErrVerificationFailed", err)
	}
}

func TestRandom_Deterministic(t *testing.T) {
	opts := RandomOptions{Depth: 5, Fanout: 10, Seed: 42, Work: 2}
	a, err := Random(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Random(opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i].ID != b.Nodes[i].ID || !slices.Equal(a.Nodes[i].DependsOn, b.Nodes[i].DependsOn) {
			t.Fatalf("node %d differs between runs", i)
		}
	}
}

func TestRandom_Shape(t *testing.T) {
	for seed := range uint64(20) {
		p, err := Random(RandomOptions{Depth: 5, Fanout: 10, Seed: seed})
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("seed %d: generated plan is invalid: %v", seed, err)
		}
		if got := len(p.Levels()); got != 5 {
			t.Errorf("seed %d: %d levels, want 5", seed, got)
		}
		if len(p.Nodes) < 5 || len(p.Nodes) > 50 {
			t.Errorf("seed %d: %d nodes outside [5,50]", seed, len(p.Nodes))
		}
		for _, n := range p.Nodes {
			if len(n.DependsOn) > 3 {
				t.Errorf("seed %d: node %s has %d dependencies", seed, n.ID, len(n.DependsOn))
			}
		}
	}
}

func TestRandom_InvalidOptions(t *testing.T) {
	for _, opts := range []RandomOptions{
		{Depth: 0, Fanout: 1},
		{Depth: MaxDepth + 1, Fanout: 1},
		{Depth: 1, Fanout: 0},
		{Depth: 1, Fanout: MaxFanout + 1},
	} {
		if _, err := Random(opts); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Random(%+v) = %v, want ErrInvalidInput", opts, err)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "diamond.yaml")
	want := diamond()
	if err := want.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "depends_on:") {
		t.Errorf("saved YAML lacks depends_on keys:\n%s", data)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Name != want.Name || len(got.Nodes) != len(want.Nodes) {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
	for i := range want.Nodes {
		w, g := want.Nodes[i], got.Nodes[i]
		if w.ID != g.ID || w.Priority != g.Priority || w.Work != g.Work || !slices.Equal(w.DependsOn, g.DependsOn) {
			t.Errorf("node %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, &errors.NotFoundError{}) {
		t.Errorf("Load(missing) = %v, want NotFoundError", err)
	}

	bad := testutil.WriteFile(t, "bad.yaml", "nodes: [unterminated")
	if _, err := Load(bad); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Load(bad yaml) = %v, want ErrInvalidInput", err)
	}

	cyclic := testutil.WriteFile(t, "cyclic.yaml", "nodes:\n  - id: a\n    depends_on: [b]\n  - id: b\n    depends_on: [a]\n")
	if _, err := Load(cyclic); !errors.Is(err, errors.ErrDependencyCycle) {
		t.Errorf("Load(cyclic) = %v, want ErrDependencyCycle", err)
	}

	unnamed := testutil.WriteFile(t, "unnamed.yaml", "nodes:\n  - id: only\n")
	p, err := Load(unnamed)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "unnamed.yaml" {
		t.Errorf("Name = %q, want the file name", p.Name)
	}
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for seed := range uint64(6) {
		p, err := Random(RandomOptions{Depth: 3, Fanout: 4, Seed: seed})
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, p.Name+".yaml")
		if err := p.Save(path); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	plans, err := LoadAll(context.Background(), paths, 2)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	for i, p := range plans {
		if p == nil || p.Seed != uint64(i) {
			t.Errorf("plans[%d] = %+v, want seed %d", i, p, i)
		}
	}

	paths = append(paths, filepath.Join(dir, "missing.yaml"))
	if _, err := LoadAll(context.Background(), paths, 2); !errors.Is(err, &errors.NotFoundError{}) {
		t.Errorf("LoadAll() with a missing file = %v, want NotFoundError", err)
	}
}

func TestRun_Diamond(t *testing.T) {
	s := newScheduler(t, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := Run(ctx, s, diamond())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Nodes != 4 || res.Edges != 4 || res.Levels != 3 {
		t.Errorf("Result = %+v", res)
	}
	total := 0
	for worker, n := range res.Workers {
		if !strings.HasPrefix(worker, "tg-worker-") {
			t.Errorf("span recorded on unexpected thread %q", worker)
		}
		total += n
	}
	if total != 4 {
		t.Errorf("workers ran %d nodes, want 4", total)
	}
}

func TestRun_RandomGraphs(t *testing.T) {
	s := newScheduler(t, 4)
	for seed := range uint64(10) {
		p, err := Random(RandomOptions{Depth: 6, Fanout: 40, Seed: seed, Work: 2})
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		res, err := Run(ctx, s, p)
		cancel()
		if err != nil {
			t.Fatalf("seed %d: Run() error = %v", seed, err)
		}
		if len(res.Spans) != len(p.Nodes) {
			t.Errorf("seed %d: %d spans for %d nodes", seed, len(res.Spans), len(p.Nodes))
		}
	}
}

func TestRun_InvalidPlan(t *testing.T) {
	s := newScheduler(t, 1)
	p := &Plan{Nodes: []Node{{ID: "a", DependsOn: []string{"a"}}}}
	if _, err := Run(context.Background(), s, p); !errors.Is(err, errors.ErrDependencyCycle) {
		t.Errorf("Run() = %v, want ErrDependencyCycle", err)
	}
}
