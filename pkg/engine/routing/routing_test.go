package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg/costfunction"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

func newTestRegistry(t *testing.T) *metrics.Registry {
	t.Helper()
	reg := metrics.NewRegistry()
	_, err := reg.Register("kilometers", metrics.KILOMETERS, false)
	require.NoError(t, err)
	_, err = reg.Register("hours", metrics.HOURS, false)
	require.NoError(t, err)
	return reg
}

type testEdge struct {
	src, dst int64
	km, h    float64
	child1   int32
	child2   int32
}

func buildGraph(t *testing.T, reg *metrics.Registry, numNodes int64,
	levels []int32, edges []testEdge) *da.Graph {
	t.Helper()
	b := da.NewBuilder(reg, nil, zap.NewNop())
	b.SetWithCH(levels != nil)
	for i := int64(0); i < numNodes; i++ {
		level := int32(0)
		if levels != nil {
			level = levels[i]
		}
		b.AddNode(da.RawNode{OsmID: i, Lat: float64(i), Lon: float64(i), Level: level})
	}
	for _, e := range edges {
		child1, child2 := e.child1, e.child2
		if child1 == 0 && child2 == 0 {
			child1, child2 = da.NO_CHILD, da.NO_CHILD
		}
		b.AddEdge(da.RawEdge{
			SrcOsmID: e.src, DstOsmID: e.dst, OsmID: da.NO_OSM_ID,
			Metrics: []float64{e.km, e.h},
			Child1:  child1, Child2: child2,
		})
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// chainGraph is 0 -> 1 -> 2 -> 3 with kilometers 1 each.
func chainGraph(t *testing.T, reg *metrics.Registry) *da.Graph {
	return buildGraph(t, reg, 4, nil, []testEdge{
		{src: 0, dst: 1, km: 1, h: 1},
		{src: 1, dst: 2, km: 1, h: 1},
		{src: 2, dst: 3, km: 1, h: 1},
	})
}

// diamondGraph is 0 -> 1 -> 3 (kilometers 2, 2 / hours 3, 3) and
// 0 -> 2 -> 3 (kilometers 1, 4 / hours 1, 1).
func diamondGraph(t *testing.T, reg *metrics.Registry) *da.Graph {
	return buildGraph(t, reg, 4, nil, []testEdge{
		{src: 0, dst: 1, km: 2, h: 3},
		{src: 1, dst: 3, km: 2, h: 3},
		{src: 0, dst: 2, km: 1, h: 1},
		{src: 2, dst: 3, km: 4, h: 1},
	})
}

func kmCost(t *testing.T, g *da.Graph) *costfunction.CostFunction {
	t.Helper()
	cost, err := costfunction.NewCostFunction(g, []string{"kilometers"}, []float64{1})
	require.NoError(t, err)
	return cost
}

func hoursCost(t *testing.T, g *da.Graph) *costfunction.CostFunction {
	t.Helper()
	cost, err := costfunction.NewCostFunction(g, []string{"hours"}, []float64{1})
	require.NoError(t, err)
	return cost
}

func TestDijkstraChain(t *testing.T) {
	g := chainGraph(t, newTestRegistry(t))

	p, err := NewDijkstra(g, kmCost(t, g)).ShortestPath(0, 3)
	require.NoError(t, err)
	require.InDelta(t, 3.0, p.GetCost(), 1e-12)
	require.Equal(t, []da.Index{0, 1, 2, 3}, p.GetNodes())
}

func TestDijkstraDiamondByPrimaryMetric(t *testing.T) {
	reg := newTestRegistry(t)
	g := diamondGraph(t, reg)

	testCases := []struct {
		name      string
		cost      *costfunction.CostFunction
		wantCost  float64
		wantNodes []da.Index
	}{
		{name: "kilometers", cost: kmCost(t, g), wantCost: 4, wantNodes: []da.Index{0, 1, 3}},
		{name: "hours", cost: hoursCost(t, g), wantCost: 2, wantNodes: []da.Index{0, 2, 3}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewDijkstra(g, tt.cost).ShortestPath(0, 3)
			require.NoError(t, err)
			require.InDelta(t, tt.wantCost, p.GetCost(), 1e-12)
			require.Equal(t, tt.wantNodes, p.GetNodes())
		})
	}
}

func TestDijkstraUnreachable(t *testing.T) {
	reg := newTestRegistry(t)
	g := buildGraph(t, reg, 2, nil, []testEdge{{src: 0, dst: 1, km: 1, h: 1}})

	_, err := NewDijkstra(g, kmCost(t, g)).ShortestPath(1, 0)
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrUnreachable))
}

func TestDijkstraIsDeterministic(t *testing.T) {
	// two equal-cost routes; the lexicographic tie-break must pick the same
	// one on every run
	reg := newTestRegistry(t)
	g := buildGraph(t, reg, 4, nil, []testEdge{
		{src: 0, dst: 1, km: 1, h: 1},
		{src: 1, dst: 3, km: 1, h: 1},
		{src: 0, dst: 2, km: 1, h: 1},
		{src: 2, dst: 3, km: 1, h: 1},
	})

	first, err := NewDijkstra(g, kmCost(t, g)).ShortestPath(0, 3)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		p, err := NewDijkstra(g, kmCost(t, g)).ShortestPath(0, 3)
		require.NoError(t, err)
		require.Equal(t, first.GetNodes(), p.GetNodes())
		require.Equal(t, first.GetEdges(), p.GetEdges())
		require.Equal(t, first.GetCost(), p.GetCost())
	}
}

func TestBidirectionalMatchesUnidirectional(t *testing.T) {
	reg := newTestRegistry(t)
	g := buildGraph(t, reg, 6, nil, []testEdge{
		{src: 0, dst: 1, km: 1, h: 1},
		{src: 1, dst: 2, km: 2, h: 1},
		{src: 0, dst: 2, km: 4, h: 1},
		{src: 2, dst: 3, km: 1, h: 1},
		{src: 3, dst: 4, km: 2, h: 1},
		{src: 2, dst: 4, km: 5, h: 1},
		{src: 4, dst: 5, km: 1, h: 1},
		{src: 1, dst: 4, km: 9, h: 1},
	})

	uni := NewDijkstra(g, kmCost(t, g))
	bidi := NewBidirectionalDijkstra(g, kmCost(t, g))

	for s := da.Index(0); s < 6; s++ {
		for target := da.Index(0); target < 6; target++ {
			uniPath, uniErr := uni.ShortestPath(s, target)
			bidiPath, bidiErr := bidi.ShortestPath(s, target)
			if uniErr != nil {
				require.Error(t, bidiErr, "pair (%d, %d)", s, target)
				continue
			}
			require.NoError(t, bidiErr, "pair (%d, %d)", s, target)
			require.InDelta(t, uniPath.GetCost(), bidiPath.GetCost(), 1e-12, "pair (%d, %d)", s, target)
		}
	}
}

func TestRouteReturnsSinglePath(t *testing.T) {
	g := chainGraph(t, newTestRegistry(t))

	paths, err := NewDijkstra(g, kmCost(t, g)).Route(0, 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	paths, err = NewBidirectionalDijkstra(g, kmCost(t, g)).Route(0, 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestParseAlgorithm(t *testing.T) {
	algo, err := ParseAlgorithm("CHDijkstra")
	require.NoError(t, err)
	require.Equal(t, ALGO_CH_DIJKSTRA, algo)

	_, err = ParseAlgorithm("AStar")
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrBadConfig))
}
