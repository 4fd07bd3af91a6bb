package routing

import (
	"github.com/lintas-routing/balancegraph/pkg/costfunction"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// CHDijkstra queries a contracted graph: both searches traverse only edges
// toward strictly higher levels, so each scans a tiny cone of the hierarchy.
// The found up-down path may contain shortcuts and is unpacked into original
// edges before it is returned.
type CHDijkstra struct {
	graph *da.Graph
	cost  *costfunction.CostFunction
}

func NewCHDijkstra(graph *da.Graph, cost *costfunction.CostFunction) (*CHDijkstra, error) {
	if !graph.HasCH() {
		return nil, util.WrapErrorf(nil, util.ErrBadConfig,
			"CH-Dijkstra selected but the graph carries no contraction hierarchy")
	}
	return &CHDijkstra{graph: graph, cost: cost}, nil
}

func (c *CHDijkstra) ShortestPath(s, t da.Index) (*Path, error) {
	mu, meeting, fwd, bwd := runBidirectional(c.graph, c.cost, s, t, true)
	if meeting == da.INVALID_INDEX {
		return nil, util.WrapErrorf(nil, util.ErrUnreachable, "no path from %d to %d", s, t)
	}

	packed := append(fwd.chainTo(meeting), bwd.chainTo(meeting)...)
	edges := UnpackEdges(c.graph, packed)
	return NewPath(nodesOfEdges(c.graph, s, edges), edges, mu), nil
}

func (c *CHDijkstra) Route(s, t da.Index) ([]*Path, error) {
	p, err := c.ShortestPath(s, t)
	if err != nil {
		return nil, err
	}
	return []*Path{p}, nil
}
