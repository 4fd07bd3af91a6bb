package routing

import (
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
)

// Path is one route through the graph: the visited nodes, the edges between
// them, and the cost under the cost function that produced it.
type Path struct {
	nodes []da.Index
	edges []da.Index
	cost  float64
}

func NewPath(nodes, edges []da.Index, cost float64) *Path {
	return &Path{nodes: nodes, edges: edges, cost: cost}
}

func (p *Path) GetNodes() []da.Index {
	return p.nodes
}

func (p *Path) GetEdges() []da.Index {
	return p.edges
}

func (p *Path) GetCost() float64 {
	return p.cost
}

// MetricCost sums one metric column over the path's edges.
func (p *Path) MetricCost(g *da.Graph, col int) float64 {
	total := 0.0
	for _, e := range p.edges {
		total += g.GetMetric(col, e)
	}
	return total
}

// UnpackEdges expands shortcut edges into the original edges they contract.
// Deep shortcut chains are expected, so the expansion runs on an explicit
// stack instead of recursing.
func UnpackEdges(g *da.Graph, edges []da.Index) []da.Index {
	out := make([]da.Index, 0, len(edges))
	stack := make([]da.Index, 0, 2*len(edges))

	for i := len(edges) - 1; i >= 0; i-- {
		stack = append(stack, edges[i])
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		edge := g.GetEdge(e)
		if !edge.IsShortcut() {
			out = append(out, e)
			continue
		}
		c1, c2 := edge.GetChildren()
		stack = append(stack, c2, c1)
	}
	return out
}

// nodesOfEdges derives the node sequence of a contiguous edge sequence.
func nodesOfEdges(g *da.Graph, source da.Index, edges []da.Index) []da.Index {
	nodes := make([]da.Index, 0, len(edges)+1)
	nodes = append(nodes, source)
	for _, e := range edges {
		nodes = append(nodes, g.GetEdge(e).GetDst())
	}
	return nodes
}
