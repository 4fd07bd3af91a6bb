package routing

import (
	"github.com/lintas-routing/balancegraph/pkg"
	"github.com/lintas-routing/balancegraph/pkg/costfunction"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

type Direction uint8

const (
	FORWARD Direction = iota
	BACKWARD
)

// searchState is one direction of a labeling search: distance labels,
// predecessor edges and the priority queue. The same core drives the plain,
// bidirectional and CH searches; they differ only in the neighbor producer
// (forward, backward, upward-only) and in when they stop.
type searchState struct {
	graph      *da.Graph
	cost       *costfunction.CostFunction
	direction  Direction
	upwardOnly bool

	dist     []float64
	predEdge []da.Index
	settled  []bool
	pq       *da.MinHeap[da.Index]
}

func newSearchState(graph *da.Graph, cost *costfunction.CostFunction,
	direction Direction, upwardOnly bool) *searchState {
	return &searchState{
		graph:      graph,
		cost:       cost,
		direction:  direction,
		upwardOnly: upwardOnly,
	}
}

func (s *searchState) preallocate() {
	n := s.graph.NumberOfNodes()
	s.dist = make([]float64, n)
	s.predEdge = make([]da.Index, n)
	s.settled = make([]bool, n)
	for i := 0; i < n; i++ {
		s.dist[i] = pkg.INF_WEIGHT
		s.predEdge[i] = da.INVALID_INDEX
	}
	// equal-cost pops break ties on node index, which pins down the result
	// path across runs
	s.pq = da.NewFourAryHeapWithTieBreak[da.Index](func(a, b da.Index) bool { return a < b })
}

func (s *searchState) init(source da.Index) {
	s.preallocate()
	s.dist[source] = 0
	s.pq.Insert(da.NewPriorityQueueNode(0, source))
}

func (s *searchState) topRank() float64 {
	return s.pq.GetMinRank()
}

func (s *searchState) isExhausted() bool {
	return s.pq.IsEmpty()
}

// settleNext pops the next node whose label is final, relaxes its neighbors
// and reports every improved label through onLabel. Stale duplicates from
// lazy deletion are skipped.
func (s *searchState) settleNext(onLabel func(v da.Index, dv float64)) (da.Index, float64, bool) {
	for !s.pq.IsEmpty() {
		node, _ := s.pq.ExtractMin()
		u := node.GetItem()
		if s.settled[u] || node.GetRank() > s.dist[u] {
			continue
		}
		s.settled[u] = true
		s.relax(u, onLabel)
		return u, s.dist[u], true
	}
	return da.INVALID_INDEX, pkg.INF_WEIGHT, false
}

func (s *searchState) relax(u da.Index, onLabel func(v da.Index, dv float64)) {
	du := s.dist[u]
	uLevel := int32(0)
	if s.upwardOnly {
		uLevel = s.graph.GetLevel(u)
	}

	expand := func(e da.Index, nbr da.Index) {
		if s.upwardOnly && s.graph.GetLevel(nbr) <= uLevel {
			return
		}
		nd := du + s.cost.Cost(e)
		if nd >= s.dist[nbr] {
			return
		}
		s.dist[nbr] = nd
		s.predEdge[nbr] = e
		s.pq.Insert(da.NewPriorityQueueNode(nd, nbr))
		if onLabel != nil {
			onLabel(nbr, nd)
		}
	}

	if s.direction == FORWARD {
		s.graph.ForForwardEdgesOf(u, expand)
	} else {
		s.graph.ForBackwardEdgesOf(u, expand)
	}
}

// chainTo walks the predecessor edges from v back to the search root and
// returns the edges in root-to-v order for a forward search, v-to-root order
// for a backward search.
func (s *searchState) chainTo(v da.Index) []da.Index {
	edges := make([]da.Index, 0)
	cur := v
	for s.predEdge[cur] != da.INVALID_INDEX {
		e := s.predEdge[cur]
		edges = append(edges, e)
		if s.direction == FORWARD {
			cur = s.graph.GetEdge(e).GetSrc()
		} else {
			cur = s.graph.GetEdge(e).GetDst()
		}
	}
	if s.direction == FORWARD {
		return util.ReverseG(edges)
	}
	return edges
}

// Dijkstra is the plain unidirectional search. The zero cost bound means
// unbounded; a positive bound doubles as a per-query cost timeout.
type Dijkstra struct {
	graph     *da.Graph
	cost      *costfunction.CostFunction
	costBound float64
}

func NewDijkstra(graph *da.Graph, cost *costfunction.CostFunction) *Dijkstra {
	return &Dijkstra{graph: graph, cost: cost, costBound: pkg.INF_WEIGHT}
}

func (d *Dijkstra) SetCostBound(bound float64) {
	d.costBound = bound
}

func (d *Dijkstra) ShortestPath(s, t da.Index) (*Path, error) {
	state := newSearchState(d.graph, d.cost, FORWARD, false)
	state.init(s)

	for {
		u, du, ok := state.settleNext(nil)
		if !ok || du > d.costBound {
			return nil, util.WrapErrorf(nil, util.ErrUnreachable, "no path from %d to %d", s, t)
		}
		if u == t {
			break
		}
	}

	edges := state.chainTo(t)
	return NewPath(nodesOfEdges(d.graph, s, edges), edges, state.dist[t]), nil
}

func (d *Dijkstra) Route(s, t da.Index) ([]*Path, error) {
	p, err := d.ShortestPath(s, t)
	if err != nil {
		return nil, err
	}
	return []*Path{p}, nil
}
