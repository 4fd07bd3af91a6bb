package costfunction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

func testGraph(t *testing.T) (*da.Graph, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	reg.Register("kilometers", metrics.KILOMETERS, false)
	reg.Register("hours", metrics.HOURS, false)

	b := da.NewBuilder(reg, nil, zap.NewNop())
	b.AddNode(da.RawNode{OsmID: 0})
	b.AddNode(da.RawNode{OsmID: 1})
	b.AddEdge(da.RawEdge{SrcOsmID: 0, DstOsmID: 1, OsmID: da.NO_OSM_ID,
		Metrics: []float64{10, 0.5}, Child1: da.NO_CHILD, Child2: da.NO_CHILD})
	g, err := b.Build()
	require.NoError(t, err)
	return g, reg
}

func TestCostIsLinearCombination(t *testing.T) {
	g, _ := testGraph(t)

	cost, err := NewCostFunction(g, []string{"kilometers", "hours"}, []float64{2, 4})
	require.NoError(t, err)
	require.InDelta(t, 2*10+4*0.5, cost.Cost(0), 1e-12)
}

func TestCostSingleMetric(t *testing.T) {
	g, reg := testGraph(t)
	hoursCol, _ := reg.TryIdx("hours")

	cost := NewSingleMetric(g, hoursCol)
	require.InDelta(t, 0.5, cost.Cost(0), 1e-12)
}

func TestCostRejectsNegativeAlpha(t *testing.T) {
	g, _ := testGraph(t)

	_, err := NewCostFunction(g, []string{"kilometers"}, []float64{-1})
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrBadConfig))
}

func TestCostRejectsUnknownMetric(t *testing.T) {
	g, _ := testGraph(t)

	_, err := NewCostFunction(g, []string{"velocity"}, []float64{1})
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrMissingInput))
}
