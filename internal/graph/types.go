package graph

// Node is one task of a plan.
type Node struct {
	// ID names the node. IDs are unique within a plan.
	ID string `yaml:"id"`

	// DependsOn lists the IDs of nodes that must finish first.
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Priority orders nodes within one topological level, lower first.
	Priority int `yaml:"priority,omitempty"`

	// Work is the number of busy-work rounds the node performs.
	Work int `yaml:"work,omitempty"`
}

// Plan is a named task graph.
type Plan struct {
	Name  string `yaml:"name"`
	Seed  uint64 `yaml:"seed,omitempty"`
	Nodes []Node `yaml:"nodes"`
}

// Edges returns the number of dependency edges.
func (p *Plan) Edges() int {
	n := 0
	for _, node := range p.Nodes {
		n += len(node.DependsOn)
	}
	return n
}

// Span is the recorded execution of one node. Start and End are ticks of a
// clock shared by all nodes of a run.
type Span struct {
	Start  int64
	End    int64
	Worker string
}
