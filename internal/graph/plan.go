package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/taskgraph/internal/errors"
)

// Validate checks that node IDs are unique and non-empty, that every
// dependency names a node of the plan, and that the graph is acyclic.
func (p *Plan) Validate() error {
	byID := make(map[string]*Node, len(p.Nodes))
	for i := range p.Nodes {
		n := &p.Nodes[i]
		if n.ID == "" {
			return errors.NewValidationError("node id must not be empty").WithField(fmt.Sprintf("nodes[%d].id", i))
		}
		if _, dup := byID[n.ID]; dup {
			return errors.NewAlreadyExistsError("node", n.ID)
		}
		byID[n.ID] = n
	}
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			if _, ok := byID[dep]; !ok {
				return errors.NewNotFoundError("node", dep).
					WithCause(fmt.Errorf("dependency of %q", n.ID))
			}
		}
	}

	levels := p.Levels()
	placed := 0
	for _, level := range levels {
		placed += len(level)
	}
	if placed != len(p.Nodes) {
		return fmt.Errorf("plan %q: %w: %d nodes unreachable by topological order",
			p.Name, errors.ErrDependencyCycle, len(p.Nodes)-placed)
	}
	return nil
}

// Levels groups node IDs by topological level: level 0 has no
// dependencies, level k depends only on earlier levels. Within a level
// nodes are ordered by priority, then by ID. Nodes on a cycle, and nodes
// depending on one, appear in no level. Unknown dependencies are ignored.
func (p *Plan) Levels() [][]string {
	if len(p.Nodes) == 0 {
		return nil
	}

	priority := make(map[string]int, len(p.Nodes))
	inDegree := make(map[string]int, len(p.Nodes))
	dependents := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		priority[n.ID] = n.Priority
		inDegree[n.ID] = 0
	}
	for _, n := range p.Nodes {
		for _, dep := range n.DependsOn {
			if _, ok := inDegree[dep]; ok {
				inDegree[n.ID]++
				dependents[dep] = append(dependents[dep], n.ID)
			}
		}
	}

	var levels [][]string
	var queue []string
	for _, n := range p.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	for len(queue) > 0 {
		slices.SortFunc(queue, func(a, b string) int {
			return cmp.Or(cmp.Compare(priority[a], priority[b]), strings.Compare(a, b))
		})
		levels = append(levels, queue)

		var next []string
		for _, id := range queue {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		queue = next
	}
	return levels
}

// Verify checks spans recorded by a run of p: every node ran, and none
// started before all of its dependencies had finished.
func (p *Plan) Verify(spans map[string]Span) error {
	for _, n := range p.Nodes {
		span, ok := spans[n.ID]
		if !ok {
			return fmt.Errorf("%w: node %q never ran", errors.ErrVerificationFailed, n.ID)
		}
		for _, dep := range n.DependsOn {
			d, ok := spans[dep]
			if !ok {
				return fmt.Errorf("%w: dependency %q of %q never ran", errors.ErrVerificationFailed, dep, n.ID)
			}
			if d.End > span.Start {
				return fmt.Errorf("%w: %q started at %d before dependency %q finished at %d",
					errors.ErrVerificationFailed, n.ID, span.Start, dep, d.End)
			}
		}
	}
	return nil
}
