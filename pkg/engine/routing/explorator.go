package routing

import (
	"math"

	"github.com/lintas-routing/balancegraph/pkg"
	"github.com/lintas-routing/balancegraph/pkg/costfunction"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// Constraint bounds one secondary metric: a path is admissible iff its total
// on the metric stays within toleratedScale times the single-metric optimum
// between the endpoints.
type Constraint struct {
	metricID       string
	col            int
	toleratedScale float64
}

func NewConstraint(metricID string, col int, toleratedScale float64) (Constraint, error) {
	if toleratedScale < 1 {
		return Constraint{}, util.WrapErrorf(nil, util.ErrBadConfig,
			"tolerated scale of metric %q must be >= 1, got %f", metricID, toleratedScale)
	}
	return Constraint{metricID: metricID, col: col, toleratedScale: toleratedScale}, nil
}

func (c Constraint) GetMetricID() string {
	return c.metricID
}

func (c Constraint) GetCol() int {
	return c.col
}

func (c Constraint) GetToleratedScale() float64 {
	return c.toleratedScale
}

// Explorator enumerates up to maxPaths admissible alternative paths in
// nondecreasing primary cost. Each node keeps a pareto-frontier of
// non-dominated (primary, m1..mk) labels instead of a single distance.
type Explorator struct {
	graph       *da.Graph
	primary     *costfunction.CostFunction
	constraints []Constraint
	maxPaths    int
}

func NewExplorator(graph *da.Graph, primary *costfunction.CostFunction,
	constraints []Constraint, maxPaths int) (*Explorator, error) {
	if maxPaths <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrBadConfig,
			"explorator needs a positive path limit, got %d", maxPaths)
	}
	return &Explorator{
		graph:       graph,
		primary:     primary,
		constraints: constraints,
		maxPaths:    maxPaths,
	}, nil
}

type exploratorLabel struct {
	node      da.Index
	costs     []float64 // primary first, then one entry per constraint
	pred      *exploratorLabel
	predEdge  da.Index
	dominated bool
}

// lexLess orders full cost tuples lexicographically, node index last, which
// makes pop order and therefore output order deterministic.
func lexLess(a, b *exploratorLabel) bool {
	for i := range a.costs {
		if a.costs[i] != b.costs[i] {
			return a.costs[i] < b.costs[i]
		}
	}
	return a.node < b.node
}

// dominates reports whether a is at least as good as b in every component.
// Equal tuples dominate, which collapses duplicate label states.
func dominates(a, b *exploratorLabel) bool {
	for i := range a.costs {
		if a.costs[i] > b.costs[i] {
			return false
		}
	}
	return true
}

// ExploratePaths returns the admissible paths from s to t, best primary cost
// first. The slice may be empty when the tolerances exclude every path; an
// unreachable pair is an error.
func (ex *Explorator) ExploratePaths(s, t da.Index) ([]*Path, error) {
	bounds, err := ex.admissibilityBounds(s, t)
	if err != nil {
		return nil, err
	}

	frontier := make([][]*exploratorLabel, ex.graph.NumberOfNodes())
	pq := da.NewFourAryHeapWithTieBreak[*exploratorLabel](lexLess)

	start := &exploratorLabel{
		node:     s,
		costs:    make([]float64, 1+len(ex.constraints)),
		predEdge: da.INVALID_INDEX,
	}
	frontier[s] = append(frontier[s], start)
	pq.Insert(da.NewPriorityQueueNode(0, start))

	paths := make([]*Path, 0, ex.maxPaths)
	for !pq.IsEmpty() && len(paths) < ex.maxPaths {
		node, _ := pq.ExtractMin()
		lab := node.GetItem()
		if lab.dominated {
			continue
		}
		if lab.node == t {
			paths = append(paths, ex.pathOf(s, lab))
			continue
		}

		ex.graph.ForForwardEdgesOf(lab.node, func(e da.Index, dst da.Index) {
			costs := make([]float64, len(lab.costs))
			costs[0] = lab.costs[0] + ex.primary.Cost(e)
			for i, c := range ex.constraints {
				costs[i+1] = lab.costs[i+1] + ex.graph.GetMetric(c.col, e)
				if costs[i+1] > bounds[i] {
					return
				}
			}

			next := &exploratorLabel{node: dst, costs: costs, pred: lab, predEdge: e}
			// the target enumerates every admissible arrival; dominance only
			// prunes interior nodes, or the second-best path could never be
			// returned
			if dst != t && !insertIntoFrontier(frontier, next) {
				return
			}
			pq.Insert(da.NewPriorityQueueNode(costs[0], next))
		})
	}

	return paths, nil
}

// insertIntoFrontier keeps the per-node frontier non-dominated and sorted by
// primary cost. It reports whether the new label survived.
func insertIntoFrontier(frontier [][]*exploratorLabel, next *exploratorLabel) bool {
	labels := frontier[next.node]
	for _, old := range labels {
		if !old.dominated && dominates(old, next) {
			return false
		}
	}
	kept := labels[:0]
	for _, old := range labels {
		if !old.dominated && dominates(next, old) {
			old.dominated = true
			continue
		}
		kept = append(kept, old)
	}

	pos := len(kept)
	for i, old := range kept {
		if lexLess(next, old) {
			pos = i
			break
		}
	}
	kept = append(kept, nil)
	copy(kept[pos+1:], kept[pos:])
	kept[pos] = next
	frontier[next.node] = kept
	return true
}

// admissibilityBounds computes tau_m * best_m(s, t) per constrained metric.
func (ex *Explorator) admissibilityBounds(s, t da.Index) ([]float64, error) {
	bounds := make([]float64, len(ex.constraints))
	for i, c := range ex.constraints {
		single := NewDijkstra(ex.graph, costfunction.NewSingleMetric(ex.graph, c.col))
		best, err := single.ShortestPath(s, t)
		if err != nil {
			return nil, err
		}
		if math.IsInf(c.toleratedScale, 1) {
			bounds[i] = pkg.INF_WEIGHT
			continue
		}
		bounds[i] = c.toleratedScale * best.GetCost()
	}
	return bounds, nil
}

func (ex *Explorator) pathOf(s da.Index, lab *exploratorLabel) *Path {
	edges := make([]da.Index, 0)
	for cur := lab; cur.predEdge != da.INVALID_INDEX; cur = cur.pred {
		edges = append(edges, cur.predEdge)
	}
	edges = util.ReverseG(edges)
	return NewPath(nodesOfEdges(ex.graph, s, edges), edges, lab.costs[0])
}

func (ex *Explorator) Route(s, t da.Index) ([]*Path, error) {
	return ex.ExploratePaths(s, t)
}
