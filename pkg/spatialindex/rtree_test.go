package spatialindex

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
)

func testGraph(t *testing.T) *da.Graph {
	t.Helper()
	reg := metrics.NewRegistry()
	reg.Register("kilometers", metrics.KILOMETERS, false)

	b := da.NewBuilder(reg, nil, zap.NewNop())
	b.AddNode(da.RawNode{OsmID: 0, Lat: 48.70, Lon: 9.10})
	b.AddNode(da.RawNode{OsmID: 1, Lat: 48.75, Lon: 9.15})
	b.AddNode(da.RawNode{OsmID: 2, Lat: 48.90, Lon: 9.30})
	b.AddEdge(da.RawEdge{SrcOsmID: 0, DstOsmID: 1, OsmID: da.NO_OSM_ID,
		Metrics: []float64{1}, Child1: da.NO_CHILD, Child2: da.NO_CHILD})
	b.AddEdge(da.RawEdge{SrcOsmID: 1, DstOsmID: 2, OsmID: da.NO_OSM_ID,
		Metrics: []float64{1}, Child1: da.NO_CHILD, Child2: da.NO_CHILD})
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestNearestNode(t *testing.T) {
	g := testGraph(t)
	rt := NewRtree()
	rt.Build(g, zap.NewNop())

	testCases := []struct {
		name     string
		lat, lon float64
		want     da.Index
	}{
		{name: "exact hit", lat: 48.70, lon: 9.10, want: 0},
		{name: "near the middle node", lat: 48.751, lon: 9.151, want: 1},
		{name: "near the far node", lat: 48.89, lon: 9.29, want: 2},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rt.NearestNode(tt.lat, tt.lon)
			require.True(t, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
