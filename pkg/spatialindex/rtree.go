package spatialindex

import (
	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/geo"
)

// Rtree snaps raw coordinates to graph nodes. Route pairs may be given as
// lat/lon instead of node ids; each endpoint snaps to the nearest node.
type Rtree struct {
	tr *rtree.RTreeG[da.Index]
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[da.Index]
	return &Rtree{
		tr: &tr,
	}
}

func (rt *Rtree) Build(graph *da.Graph, log *zap.Logger) {
	log.Info("building r-tree spatial index over graph nodes",
		zap.Int("nodes", graph.NumberOfNodes()))
	for v := 0; v < graph.NumberOfNodes(); v++ {
		lat, lon := graph.GetNodeCoordinates(da.Index(v))
		p := [2]float64{lon, lat}
		rt.tr.Insert(p, p, da.Index(v))
	}
}

// searchRadiiKm grows until something is found; beyond the last entry the
// query gives up.
var searchRadiiKm = []float64{0.2, 1.0, 5.0, 25.0, 100.0}

// NearestNode returns the graph node closest to (lat, lon).
func (rt *Rtree) NearestNode(lat, lon float64) (da.Index, bool) {
	for _, radius := range searchRadiiKm {
		minLat, minLon := geo.GetDestinationPoint(lat, lon, 225, radius)
		maxLat, maxLon := geo.GetDestinationPoint(lat, lon, 45, radius)

		best := da.INVALID_INDEX
		bestDist := 0.0
		rt.tr.Search([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat},
			func(min, max [2]float64, v da.Index) bool {
				d := geo.CalculateAngleDistanceKm(lat, lon, min[1], min[0])
				if best == da.INVALID_INDEX || d < bestDist || (d == bestDist && v < best) {
					best = v
					bestDist = d
				}
				return true
			})
		if best != da.INVALID_INDEX {
			return best, true
		}
	}
	return da.INVALID_INDEX, false
}
