package routing

import (
	"github.com/lintas-routing/balancegraph/pkg"
	"github.com/lintas-routing/balancegraph/pkg/costfunction"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// BidirectionalDijkstra runs a forward search from the source and a backward
// search from the target, alternating by the smaller top-of-heap. The best
// meeting node v minimizes dF[v] + dB[v]; the search may stop as soon as
// topF + topB >= mu because every later-settled node can only produce longer
// connections.
type BidirectionalDijkstra struct {
	graph *da.Graph
	cost  *costfunction.CostFunction
}

func NewBidirectionalDijkstra(graph *da.Graph, cost *costfunction.CostFunction) *BidirectionalDijkstra {
	return &BidirectionalDijkstra{graph: graph, cost: cost}
}

func (b *BidirectionalDijkstra) ShortestPath(s, t da.Index) (*Path, error) {
	mu, meeting, fwd, bwd := runBidirectional(b.graph, b.cost, s, t, false)
	if meeting == da.INVALID_INDEX {
		return nil, util.WrapErrorf(nil, util.ErrUnreachable, "no path from %d to %d", s, t)
	}

	edges := append(fwd.chainTo(meeting), bwd.chainTo(meeting)...)
	return NewPath(nodesOfEdges(b.graph, s, edges), edges, mu), nil
}

func (b *BidirectionalDijkstra) Route(s, t da.Index) ([]*Path, error) {
	p, err := b.ShortestPath(s, t)
	if err != nil {
		return nil, err
	}
	return []*Path{p}, nil
}

// runBidirectional drives both searches to the termination condition and
// returns the optimum, the best meeting node and both final states.
func runBidirectional(graph *da.Graph, cost *costfunction.CostFunction,
	s, t da.Index, upwardOnly bool) (float64, da.Index, *searchState, *searchState) {

	fwd := newSearchState(graph, cost, FORWARD, upwardOnly)
	bwd := newSearchState(graph, cost, BACKWARD, upwardOnly)
	fwd.init(s)
	bwd.init(t)

	mu := pkg.INF_WEIGHT
	meeting := da.INVALID_INDEX
	if s == t {
		return 0, s, fwd, bwd
	}

	updateMeeting := func(v da.Index) {
		cand := fwd.dist[v] + bwd.dist[v]
		if cand < mu || (cand == mu && v < meeting) {
			mu = cand
			meeting = v
		}
	}
	onForwardLabel := func(v da.Index, _ float64) {
		if bwd.dist[v] < pkg.INF_WEIGHT {
			updateMeeting(v)
		}
	}
	onBackwardLabel := func(v da.Index, _ float64) {
		if fwd.dist[v] < pkg.INF_WEIGHT {
			updateMeeting(v)
		}
	}

	for !fwd.isExhausted() || !bwd.isExhausted() {
		if upwardOnly {
			// upward searches settle nodes out of distance order relative to
			// the final down-path, so each queue must drain to mu on its own
			if fwd.topRank() >= mu && bwd.topRank() >= mu {
				break
			}
		} else if fwd.topRank()+bwd.topRank() >= mu {
			break
		}
		if fwd.topRank() <= bwd.topRank() {
			if u, _, ok := fwd.settleNext(onForwardLabel); ok && bwd.dist[u] < pkg.INF_WEIGHT {
				updateMeeting(u)
			}
		} else {
			if u, _, ok := bwd.settleNext(onBackwardLabel); ok && fwd.dist[u] < pkg.INF_WEIGHT {
				updateMeeting(u)
			}
		}
	}

	if mu >= pkg.INF_WEIGHT {
		return pkg.INF_WEIGHT, da.INVALID_INDEX, fwd, bwd
	}
	return mu, meeting, fwd, bwd
}
