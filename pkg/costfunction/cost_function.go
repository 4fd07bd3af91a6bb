package costfunction

import (
	"math"

	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// Term is one (metric column, coefficient) pair of the linear cost. The cost
// function carries the column slices directly; edge-cost evaluation is the
// hot loop and must not dispatch through the registry per edge.
type Term struct {
	col    int
	alpha  float64
	column []float64
}

func (t Term) GetCol() int {
	return t.col
}

func (t Term) GetAlpha() float64 {
	return t.alpha
}

// CostFunction evaluates c(e) = sum alpha_m * metric[m][e] over the active
// metric subset.
type CostFunction struct {
	terms []Term
}

// NewCostFunction binds metric ids and coefficients against the graph's
// columns. Coefficients must be non-negative; Dijkstra correctness depends
// on non-negative edge costs.
func NewCostFunction(g *da.Graph, ids []string, alphas []float64) (*CostFunction, error) {
	if len(ids) != len(alphas) {
		return nil, util.WrapErrorf(nil, util.ErrBadConfig,
			"%d metric ids but %d coefficients", len(ids), len(alphas))
	}
	terms := make([]Term, 0, len(ids))
	for i, id := range ids {
		if alphas[i] < 0 || math.IsNaN(alphas[i]) {
			return nil, util.WrapErrorf(nil, util.ErrBadConfig,
				"coefficient of metric %q must be >= 0, got %f", id, alphas[i])
		}
		col, err := g.GetRegistry().TryIdx(id)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Term{col: col, alpha: alphas[i], column: g.GetMetricColumn(col)})
	}
	return &CostFunction{terms: terms}, nil
}

// NewSingleMetric is the cost of one metric alone, used for the explorator's
// per-metric optima.
func NewSingleMetric(g *da.Graph, col int) *CostFunction {
	return &CostFunction{terms: []Term{{col: col, alpha: 1.0, column: g.GetMetricColumn(col)}}}
}

func (c *CostFunction) Cost(e da.Index) float64 {
	cost := 0.0
	for i := range c.terms {
		cost += c.terms[i].alpha * c.terms[i].column[e]
	}
	return cost
}

func (c *CostFunction) GetTerms() []Term {
	return c.terms
}
