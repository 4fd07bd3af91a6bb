package balancer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/twpayne/go-polyline"

	"github.com/lintas-routing/balancegraph/pkg/config"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/engine/routing"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// WriteEdgesInfo persists the per-round diagnostics csv: one row per edge
// with the selected metric columns, optionally including shortcut edges and
// optionally denormalized back into real units.
func WriteEdgesInfo(g *da.Graph, path string, info config.EdgesInfo) error {
	cols := make([]int, 0, len(info.IDs))
	for _, id := range info.IDs {
		col, err := g.GetRegistry().TryIdx(id)
		if err != nil {
			return err
		}
		cols = append(cols, col)
	}

	f, err := os.Create(path)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "creating %s", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	header := append([]string{"edge-id", "src-id", "dst-id"}, info.IDs...)
	fmt.Fprintln(w, strings.Join(header, ","))

	for e := 0; e < g.NumberOfEdges(); e++ {
		edge := g.GetEdge(da.Index(e))
		if edge.IsShortcut() && !info.WithShortcuts {
			continue
		}
		fmt.Fprintf(w, "%d,%d,%d", e,
			g.GetNode(edge.GetSrc()).GetOsmID(), g.GetNode(edge.GetDst()).GetOsmID())
		for _, col := range cols {
			val := g.GetMetric(col, da.Index(e))
			if info.WillDenormalizeMetricsByMean {
				val *= g.GetRegistry().Mean(col)
			}
			fmt.Fprint(w, ",", strconv.FormatFloat(val, 'f', -1, 64))
		}
		fmt.Fprintln(w)
	}

	if err := w.Flush(); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "flushing %s", path)
	}
	return nil
}

// VehicleTrace is one routed vehicle of a round, its geometry encoded as a
// google polyline.
type VehicleTrace struct {
	SrcID    int64
	DstID    int64
	Polyline string
}

// EncodeTrace encodes the node sequence of a path into a polyline string.
func EncodeTrace(g *da.Graph, p *routing.Path) string {
	coords := make([][]float64, 0, len(p.GetNodes()))
	for _, v := range p.GetNodes() {
		lat, lon := g.GetNodeCoordinates(v)
		coords = append(coords, []float64{lat, lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// WriteVehicleTraces persists one "src dst polyline" line per routed vehicle.
func WriteVehicleTraces(path string, traces []VehicleTrace) error {
	f, err := os.Create(path)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "creating %s", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	for _, tr := range traces {
		fmt.Fprintf(w, "%d %d %s\n", tr.SrcID, tr.DstID, tr.Polyline)
	}
	if err := w.Flush(); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "flushing %s", path)
	}
	return nil
}
