package datastructure

import (
	"math"

	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

type Index uint32

const (
	INVALID_INDEX Index = math.MaxUint32

	NO_CHILD  int32 = -1
	NO_OSM_ID int64 = -1
)

type Node struct {
	lat   float64
	lon   float64
	osmID int64
	id    Index
	level int32
}

func NewNode(id Index, osmID int64, lat, lon float64, level int32) Node {
	return Node{
		id:    id,
		osmID: osmID,
		lat:   lat,
		lon:   lon,
		level: level,
	}
}

func (n *Node) GetID() Index {
	return n.id
}

func (n *Node) GetOsmID() int64 {
	return n.osmID
}

func (n *Node) GetLat() float64 {
	return n.lat
}

func (n *Node) GetLon() float64 {
	return n.lon
}

func (n *Node) GetLevel() int32 {
	return n.level
}

// Edge is directed. A shortcut edge carries the indices of the two edges it
// contracts; original edges carry NO_CHILD twice.
type Edge struct {
	osmID  int64
	id     Index
	src    Index
	dst    Index
	child1 int32
	child2 int32
}

func NewEdge(id Index, src, dst Index, osmID int64, child1, child2 int32) Edge {
	return Edge{
		id:     id,
		src:    src,
		dst:    dst,
		osmID:  osmID,
		child1: child1,
		child2: child2,
	}
}

func (e *Edge) GetID() Index {
	return e.id
}

func (e *Edge) GetOsmID() int64 {
	return e.osmID
}

func (e *Edge) GetSrc() Index {
	return e.src
}

func (e *Edge) GetDst() Index {
	return e.dst
}

func (e *Edge) IsShortcut() bool {
	return e.child1 != NO_CHILD
}

func (e *Edge) GetChildren() (Index, Index) {
	return Index(e.child1), Index(e.child2)
}

// Graph is the immutable compressed-sparse-row road network. Edges are sorted
// by (src, dst), so the forward adjacency of v is the contiguous edge range
// [offF[v], offF[v+1]). The backward adjacency stores edge indices of the
// transpose. Metric values live in one contiguous column per metric, so cost
// evaluation touches only the active columns.
type Graph struct {
	nodes []Node
	edges []Edge

	offF     []Index
	offB     []Index
	bwdEdges []Index
	bwdPos   []Index // forward edge index -> its position in bwdEdges

	columns [][]float64

	registry *metrics.Registry
	osmIndex map[int64]Index
	hasCH    bool
}

func (g *Graph) NumberOfNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumberOfEdges() int {
	return len(g.edges)
}

func (g *Graph) GetNode(v Index) *Node {
	return &g.nodes[v]
}

func (g *Graph) GetEdge(e Index) *Edge {
	return &g.edges[e]
}

func (g *Graph) GetRegistry() *metrics.Registry {
	return g.registry
}

func (g *Graph) HasCH() bool {
	return g.hasCH
}

func (g *Graph) GetLevel(v Index) int32 {
	return g.nodes[v].level
}

func (g *Graph) GetNodeCoordinates(v Index) (float64, float64) {
	return g.nodes[v].lat, g.nodes[v].lon
}

// IndexOfOsmID resolves a stable external node id to its dense index.
func (g *Graph) IndexOfOsmID(osmID int64) (Index, bool) {
	idx, ok := g.osmIndex[osmID]
	return idx, ok
}

// ForForwardEdgesOf visits every edge leaving v.
func (g *Graph) ForForwardEdgesOf(v Index, fn func(e Index, dst Index)) {
	for e := g.offF[v]; e < g.offF[v+1]; e++ {
		fn(e, g.edges[e].dst)
	}
}

// ForBackwardEdgesOf visits every edge entering v.
func (g *Graph) ForBackwardEdgesOf(v Index, fn func(e Index, src Index)) {
	for pos := g.offB[v]; pos < g.offB[v+1]; pos++ {
		e := g.bwdEdges[pos]
		fn(e, g.edges[e].src)
	}
}

// ForwardWindow exposes the raw CSR window of v.
func (g *Graph) ForwardWindow(v Index) (Index, Index) {
	return g.offF[v], g.offF[v+1]
}

func (g *Graph) BackwardWindow(v Index) (Index, Index) {
	return g.offB[v], g.offB[v+1]
}

func (g *Graph) GetBackwardEdgeAt(pos Index) Index {
	return g.bwdEdges[pos]
}

// GetBackwardPosition maps a forward edge index to its slot in the backward
// adjacency, the reverse of GetBackwardEdgeAt.
func (g *Graph) GetBackwardPosition(e Index) Index {
	return g.bwdPos[e]
}

func (g *Graph) GetMetric(col int, e Index) float64 {
	return g.columns[col][e]
}

func (g *Graph) GetMetricColumn(col int) []float64 {
	return g.columns[col]
}

// SetMetricColumn replaces one metric column in place. Only the balancing
// loop calls this, between rounds, under exclusive access.
func (g *Graph) SetMetricColumn(col int, vals []float64) {
	util.AssertPanic(len(vals) == len(g.edges), "metric column length must equal the edge count")
	copy(g.columns[col], vals)
}
