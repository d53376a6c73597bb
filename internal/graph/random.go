package graph

import (
	"fmt"
	"math/rand/v2"

	"github.com/Iron-Ham/taskgraph/internal/errors"
)

// Limits for generated graphs.
const (
	MaxDepth  = 32
	MaxFanout = 256
)

// RandomOptions shapes a generated graph.
type RandomOptions struct {
	// Depth is the number of topological levels.
	Depth int
	// Fanout is the maximum number of nodes per level.
	Fanout int
	// MaxDeps caps the dependencies of a node. 0 means 3.
	MaxDeps int
	// Work is the maximum busy-work of a node.
	Work int
	Seed uint64
}

// Random generates an acyclic plan. Nodes of level k depend on one or more
// nodes of earlier levels, at least one of them on level k-1, so the plan
// has exactly Depth levels. The same options always yield the same plan.
func Random(opts RandomOptions) (*Plan, error) {
	if opts.Depth < 1 || opts.Depth > MaxDepth {
		return nil, errors.NewValidationError(fmt.Sprintf("depth must be between 1 and %d", MaxDepth)).
			WithField("depth").WithValue(opts.Depth)
	}
	if opts.Fanout < 1 || opts.Fanout > MaxFanout {
		return nil, errors.NewValidationError(fmt.Sprintf("fanout must be between 1 and %d", MaxFanout)).
			WithField("fanout").WithValue(opts.Fanout)
	}
	maxDeps := opts.MaxDeps
	if maxDeps <= 0 {
		maxDeps = 3
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	p := &Plan{
		Name: fmt.Sprintf("random-d%d-f%d-s%d", opts.Depth, opts.Fanout, opts.Seed),
		Seed: opts.Seed,
	}

	var earlier []string
	var prev []string
	for level := range opts.Depth {
		width := 1 + rng.IntN(opts.Fanout)
		current := make([]string, 0, width)
		for i := range width {
			n := Node{
				ID:       fmt.Sprintf("n%d-%d", level, i),
				Priority: rng.IntN(4),
			}
			if opts.Work > 0 {
				n.Work = rng.IntN(opts.Work + 1)
			}
			if level > 0 {
				n.DependsOn = pickDeps(rng, prev, earlier, maxDeps)
			}
			p.Nodes = append(p.Nodes, n)
			current = append(current, n.ID)
		}
		earlier = append(earlier, current...)
		prev = current
	}
	return p, nil
}

// pickDeps picks one node of the previous level and up to maxDeps-1 more,
// without repeats, from all earlier levels.
func pickDeps(rng *rand.Rand, prev, earlier []string, maxDeps int) []string {
	first := prev[rng.IntN(len(prev))]
	deps := []string{first}
	seen := map[string]bool{first: true}

	extra := rng.IntN(maxDeps)
	for range extra {
		id := earlier[rng.IntN(len(earlier))]
		if seen[id] {
			continue
		}
		seen[id] = true
		deps = append(deps, id)
	}
	return deps
}
