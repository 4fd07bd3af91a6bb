package datastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

func newTestRegistry(t *testing.T, normalize bool) *metrics.Registry {
	t.Helper()
	reg := metrics.NewRegistry()
	_, err := reg.Register("kilometers", metrics.KILOMETERS, normalize)
	require.NoError(t, err)
	_, err = reg.Register("hours", metrics.HOURS, normalize)
	require.NoError(t, err)
	return reg
}

func edge(src, dst int64, km, hours float64) RawEdge {
	return RawEdge{
		SrcOsmID: src, DstOsmID: dst, OsmID: NO_OSM_ID,
		Metrics: []float64{km, hours},
		Child1:  NO_CHILD, Child2: NO_CHILD,
	}
}

func buildChain(t *testing.T, reg *metrics.Registry) *Graph {
	t.Helper()
	b := NewBuilder(reg, nil, zap.NewNop())
	for i := int64(0); i < 4; i++ {
		b.AddNode(RawNode{OsmID: i, Lat: float64(i), Lon: float64(i)})
	}
	b.AddEdge(edge(0, 1, 1, 0.5))
	b.AddEdge(edge(1, 2, 1, 0.5))
	b.AddEdge(edge(2, 3, 1, 0.5))
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestBuildChainCSRRoundTrip(t *testing.T) {
	g := buildChain(t, newTestRegistry(t, false))
	require.Equal(t, 4, g.NumberOfNodes())
	require.Equal(t, 3, g.NumberOfEdges())

	// every edge appears in the forward window of its source and the
	// backward window of its destination
	for e := 0; e < g.NumberOfEdges(); e++ {
		edge := g.GetEdge(Index(e))

		found := false
		g.ForForwardEdgesOf(edge.GetSrc(), func(fe Index, dst Index) {
			if fe == Index(e) {
				require.Equal(t, edge.GetDst(), dst)
				found = true
			}
		})
		require.True(t, found, "edge %d missing from forward adjacency", e)

		found = false
		g.ForBackwardEdgesOf(edge.GetDst(), func(be Index, src Index) {
			if be == Index(e) {
				require.Equal(t, edge.GetSrc(), src)
				found = true
			}
		})
		require.True(t, found, "edge %d missing from backward adjacency", e)

		pos := g.GetBackwardPosition(Index(e))
		require.Equal(t, Index(e), g.GetBackwardEdgeAt(pos))
	}
}

func TestBuildDropsSelfLoopsAndUnknownEndpoints(t *testing.T) {
	b := NewBuilder(newTestRegistry(t, false), nil, zap.NewNop())
	b.AddNode(RawNode{OsmID: 10})
	b.AddNode(RawNode{OsmID: 20})
	b.AddEdge(edge(10, 20, 1, 1))
	b.AddEdge(edge(10, 10, 1, 1)) // self loop
	b.AddEdge(edge(10, 99, 1, 1)) // unknown destination
	g, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 1, g.NumberOfEdges())
}

func TestBuildKeepsParallelEdges(t *testing.T) {
	b := NewBuilder(newTestRegistry(t, false), nil, zap.NewNop())
	b.AddNode(RawNode{OsmID: 1})
	b.AddNode(RawNode{OsmID: 2})
	b.AddEdge(edge(1, 2, 1, 1))
	b.AddEdge(edge(1, 2, 2, 2))
	g, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 2, g.NumberOfEdges())
}

func TestBuildRejectsDuplicateNodeIds(t *testing.T) {
	b := NewBuilder(newTestRegistry(t, false), nil, zap.NewNop())
	b.AddNode(RawNode{OsmID: 7})
	b.AddNode(RawNode{OsmID: 7})
	_, err := b.Build()
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrParse))
}

func TestBuildNormalizesByMean(t *testing.T) {
	reg := newTestRegistry(t, true)
	b := NewBuilder(reg, nil, zap.NewNop())
	b.AddNode(RawNode{OsmID: 0})
	b.AddNode(RawNode{OsmID: 1})
	b.AddNode(RawNode{OsmID: 2})
	b.AddEdge(edge(0, 1, 2, 1))
	b.AddEdge(edge(1, 2, 4, 1))
	g, err := b.Build()
	require.NoError(t, err)

	kmCol, err := reg.TryIdx("kilometers")
	require.NoError(t, err)
	require.InDelta(t, 3.0, reg.Mean(kmCol), 1e-12)
	require.InDelta(t, 2.0/3.0, g.GetMetric(kmCol, 0), 1e-12)
	require.InDelta(t, 4.0/3.0, g.GetMetric(kmCol, 1), 1e-12)
}

func TestBuildFailsOnZeroMeanNormalization(t *testing.T) {
	reg := newTestRegistry(t, true)
	b := NewBuilder(reg, nil, zap.NewNop())
	b.AddNode(RawNode{OsmID: 0})
	b.AddNode(RawNode{OsmID: 1})
	b.AddEdge(edge(0, 1, 0, 0))
	_, err := b.Build()
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrDegenerateMetric))
}

func TestBuildFailsOnNegativeMetric(t *testing.T) {
	b := NewBuilder(newTestRegistry(t, false), nil, zap.NewNop())
	b.AddNode(RawNode{OsmID: 0})
	b.AddNode(RawNode{OsmID: 1})
	b.AddEdge(edge(0, 1, -1, 1))
	_, err := b.Build()
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrDegenerateMetric))
}

func TestBuildEvaluatesGenerators(t *testing.T) {
	reg := metrics.NewRegistry()
	_, err := reg.Register("kilometers", metrics.KILOMETERS, false)
	require.NoError(t, err)
	_, err = reg.Register("kmh", metrics.KILOMETERS_PER_HOUR, false)
	require.NoError(t, err)
	_, err = reg.Register("hours", metrics.HOURS, false)
	require.NoError(t, err)
	_, err = reg.Register("workload", metrics.F64, false)
	require.NoError(t, err)

	gens := []metrics.Generator{
		metrics.NewCalcGenerator("hours", metrics.HOURS, "kilometers", "kmh"),
		metrics.NewCustomGenerator("workload", metrics.F64, 0.5),
	}
	b := NewBuilder(reg, gens, zap.NewNop())
	b.AddNode(RawNode{OsmID: 0})
	b.AddNode(RawNode{OsmID: 1})
	b.AddEdge(RawEdge{SrcOsmID: 0, DstOsmID: 1, OsmID: NO_OSM_ID,
		Metrics: []float64{100, 50, 0, 0}, Child1: NO_CHILD, Child2: NO_CHILD})
	g, err := b.Build()
	require.NoError(t, err)

	hoursCol, _ := reg.TryIdx("hours")
	workloadCol, _ := reg.TryIdx("workload")
	require.InDelta(t, 2.0, g.GetMetric(hoursCol, 0), 1e-12)
	require.InDelta(t, 0.5, g.GetMetric(workloadCol, 0), 1e-12)
}

func TestBuildValidatesShortcutComposition(t *testing.T) {
	reg := newTestRegistry(t, false)
	b := NewBuilder(reg, nil, zap.NewNop())
	b.SetWithCH(true)
	for i := int64(0); i < 3; i++ {
		b.AddNode(RawNode{OsmID: i, Level: int32(i)})
	}
	b.AddEdge(edge(0, 1, 1, 1))
	b.AddEdge(edge(1, 2, 1, 1))
	sc := edge(0, 2, 2, 2)
	sc.Child1 = 1 // wrong order: children do not compose 0 -> 2
	sc.Child2 = 0
	b.AddEdge(sc)
	_, err := b.Build()
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrParse))
}

func TestBuildAcceptsValidShortcut(t *testing.T) {
	reg := newTestRegistry(t, false)
	b := NewBuilder(reg, nil, zap.NewNop())
	b.SetWithCH(true)
	b.AddNode(RawNode{OsmID: 0, Level: 1})
	b.AddNode(RawNode{OsmID: 1, Level: 0})
	b.AddNode(RawNode{OsmID: 2, Level: 2})
	b.AddEdge(edge(0, 1, 1, 1))
	b.AddEdge(edge(1, 2, 1, 1))
	sc := edge(0, 2, 2, 2)
	sc.Child1 = 0
	sc.Child2 = 1
	b.AddEdge(sc)
	g, err := b.Build()
	require.NoError(t, err)
	require.True(t, g.HasCH())

	var shortcut *Edge
	for e := 0; e < g.NumberOfEdges(); e++ {
		if g.GetEdge(Index(e)).IsShortcut() {
			shortcut = g.GetEdge(Index(e))
		}
	}
	require.NotNil(t, shortcut)
	c1, c2 := shortcut.GetChildren()
	require.Equal(t, shortcut.GetSrc(), g.GetEdge(c1).GetSrc())
	require.Equal(t, shortcut.GetDst(), g.GetEdge(c2).GetDst())
	require.Equal(t, g.GetEdge(c1).GetDst(), g.GetEdge(c2).GetSrc())
}
