package datastructure

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg/geo"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// RawNode and RawEdge are what the parsers emit: nodes and edges addressed by
// their stable external ids, before dense indices exist.
type RawNode struct {
	OsmID int64
	Lat   float64
	Lon   float64
	Level int32
}

// Metrics is aligned to the registry's columns; positions of generated
// columns stay zero until the builder evaluates the generators. Child1/Child2
// refer to positions in the input edge order and are remapped during build.
type RawEdge struct {
	SrcOsmID int64
	DstOsmID int64
	OsmID    int64
	Metrics  []float64
	Child1   int32
	Child2   int32
}

// Builder consumes a finite stream of raw nodes then raw edges and produces
// the immutable CSR graph.
type Builder struct {
	registry   *metrics.Registry
	generators []metrics.Generator
	logger     *zap.Logger

	rawNodes []RawNode
	rawEdges []RawEdge
	withCH   bool
}

func NewBuilder(registry *metrics.Registry, generators []metrics.Generator, logger *zap.Logger) *Builder {
	return &Builder{
		registry:   registry,
		generators: generators,
		logger:     logger,
	}
}

func (b *Builder) AddNode(n RawNode) {
	b.rawNodes = append(b.rawNodes, n)
}

func (b *Builder) AddEdge(e RawEdge) {
	b.rawEdges = append(b.rawEdges, e)
}

// SetWithCH marks the input as CH-augmented: node levels and shortcut
// children are validated and retained.
func (b *Builder) SetWithCH(withCH bool) {
	b.withCH = withCH
}

func (b *Builder) Build() (*Graph, error) {
	dim := b.registry.Dim()

	// index assignment: sort nodes by external id, assign dense indices
	sort.Slice(b.rawNodes, func(i, j int) bool {
		return b.rawNodes[i].OsmID < b.rawNodes[j].OsmID
	})
	osmIndex := make(map[int64]Index, len(b.rawNodes))
	nodes := make([]Node, len(b.rawNodes))
	for i, rn := range b.rawNodes {
		if _, ok := osmIndex[rn.OsmID]; ok {
			return nil, util.WrapErrorf(nil, util.ErrParse, "duplicate node id %d", rn.OsmID)
		}
		osmIndex[rn.OsmID] = Index(i)
		nodes[i] = NewNode(Index(i), rn.OsmID, rn.Lat, rn.Lon, rn.Level)
	}

	// edge resolution: translate external ids, drop edges referencing unknown
	// nodes and self-loops, keep parallel duplicates
	type resolvedEdge struct {
		src, dst Index
		osmID    int64
		metrics  []float64
		child1   int32
		child2   int32
		inputPos int32
	}
	resolved := make([]resolvedEdge, 0, len(b.rawEdges))
	keptAtInputPos := make([]int32, len(b.rawEdges))
	droppedUnknown, droppedLoops := 0, 0
	seen := make(map[[2]Index]struct{}, len(b.rawEdges))
	duplicates := 0
	for pos, re := range b.rawEdges {
		keptAtInputPos[pos] = NO_CHILD
		src, okSrc := osmIndex[re.SrcOsmID]
		dst, okDst := osmIndex[re.DstOsmID]
		if !okSrc || !okDst {
			droppedUnknown++
			continue
		}
		if src == dst {
			droppedLoops++
			continue
		}
		if _, dup := seen[[2]Index{src, dst}]; dup {
			duplicates++
		}
		seen[[2]Index{src, dst}] = struct{}{}

		ms := make([]float64, dim)
		copy(ms, re.Metrics)
		keptAtInputPos[pos] = int32(len(resolved))
		resolved = append(resolved, resolvedEdge{
			src: src, dst: dst,
			osmID:    re.OsmID,
			metrics:  ms,
			child1:   re.Child1,
			child2:   re.Child2,
			inputPos: int32(pos),
		})
	}
	if droppedUnknown > 0 {
		b.logger.Sugar().Warnf("dropped %d edges referencing unknown nodes", droppedUnknown)
	}
	if droppedLoops > 0 {
		b.logger.Sugar().Warnf("dropped %d self-loop edges", droppedLoops)
	}
	if duplicates > 0 {
		b.logger.Sugar().Warnf("kept %d duplicate parallel edges", duplicates)
	}

	// csr construction: sort edges by (src, dst) so the forward adjacency is
	// the identity over contiguous windows
	order := make([]int, len(resolved))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, c := &resolved[order[i]], &resolved[order[j]]
		if a.src != c.src {
			return a.src < c.src
		}
		if a.dst != c.dst {
			return a.dst < c.dst
		}
		return a.inputPos < c.inputPos
	})
	sortedPos := make([]int32, len(resolved)) // resolved index -> final edge index
	for newIdx, oldIdx := range order {
		sortedPos[oldIdx] = int32(newIdx)
	}

	edges := make([]Edge, len(resolved))
	columns := make([][]float64, dim)
	for c := range columns {
		columns[c] = make([]float64, len(resolved))
	}
	for newIdx, oldIdx := range order {
		re := &resolved[oldIdx]
		child1, child2 := NO_CHILD, NO_CHILD
		if re.child1 != NO_CHILD {
			var err error
			child1, err = remapChild(re.child1, keptAtInputPos, sortedPos)
			if err == nil {
				child2, err = remapChild(re.child2, keptAtInputPos, sortedPos)
			}
			if err != nil {
				return nil, util.WrapErrorf(err, util.ErrParse,
					"shortcut %d -> %d references a dropped or unknown child edge", re.src, re.dst)
			}
		}
		edges[newIdx] = NewEdge(Index(newIdx), re.src, re.dst, re.osmID, child1, child2)
		for c := 0; c < dim; c++ {
			columns[c][newIdx] = re.metrics[c]
		}
	}

	offF := make([]Index, len(nodes)+1)
	for i := range edges {
		offF[edges[i].src+1]++
	}
	for v := 0; v < len(nodes); v++ {
		offF[v+1] += offF[v]
	}

	// transpose for the backward adjacency. Iterating edges in forward order
	// keeps every backward window sorted by source.
	offB := make([]Index, len(nodes)+1)
	for i := range edges {
		offB[edges[i].dst+1]++
	}
	for v := 0; v < len(nodes); v++ {
		offB[v+1] += offB[v]
	}
	bwdEdges := make([]Index, len(edges))
	bwdPos := make([]Index, len(edges))
	fill := make([]Index, len(nodes))
	for i := range edges {
		dst := edges[i].dst
		pos := offB[dst] + fill[dst]
		bwdEdges[pos] = Index(i)
		bwdPos[i] = pos
		fill[dst]++
	}

	g := &Graph{
		nodes:    nodes,
		edges:    edges,
		offF:     offF,
		offB:     offB,
		bwdEdges: bwdEdges,
		bwdPos:   bwdPos,
		columns:  columns,
		registry: b.registry,
		osmIndex: osmIndex,
		hasCH:    b.withCH,
	}

	// generated metrics, in topological order of the generation dag
	ordered, err := metrics.TopoSort(b.generators, b.registry)
	if err != nil {
		return nil, err
	}
	for _, gen := range ordered {
		if err := b.evaluateGenerator(g, gen); err != nil {
			return nil, err
		}
	}

	if err := b.validateColumns(g); err != nil {
		return nil, err
	}
	if err := b.normalize(g); err != nil {
		return nil, err
	}
	if b.withCH {
		if err := validateContraction(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func remapChild(inputPos int32, keptAtInputPos, sortedPos []int32) (int32, error) {
	if inputPos < 0 || int(inputPos) >= len(keptAtInputPos) {
		return NO_CHILD, util.WrapErrorf(nil, util.ErrParse, "child edge index %d out of range", inputPos)
	}
	kept := keptAtInputPos[inputPos]
	if kept == NO_CHILD {
		return NO_CHILD, util.WrapErrorf(nil, util.ErrParse, "child edge %d was dropped", inputPos)
	}
	return sortedPos[kept], nil
}

func (b *Builder) evaluateGenerator(g *Graph, gen metrics.Generator) error {
	col, err := g.registry.TryIdx(gen.Result())
	if err != nil {
		return err
	}
	out := g.columns[col]

	switch gen.Kind() {
	case metrics.GEN_HAVERSINE:
		for e := range g.edges {
			srcLat, srcLon := g.GetNodeCoordinates(g.edges[e].src)
			dstLat, dstLon := g.GetNodeCoordinates(g.edges[e].dst)
			out[e] = geo.CalculateHaversineDistance(srcLat, srcLon, dstLat, dstLon)
		}
	case metrics.GEN_CALC:
		aID, bID := gen.Operands()
		aCol, err := g.registry.TryIdx(aID)
		if err != nil {
			return err
		}
		bCol, err := g.registry.TryIdx(bID)
		if err != nil {
			return err
		}
		for e := range out {
			denom := g.columns[bCol][e]
			if denom == 0 {
				return util.WrapErrorf(nil, util.ErrDegenerateMetric,
					"calc %s = %s / %s divides by zero at edge %d", gen.Result(), aID, bID, e)
			}
			out[e] = g.columns[aCol][e] / denom
		}
	case metrics.GEN_COPY:
		fromCol, err := g.registry.TryIdx(gen.From())
		if err != nil {
			return err
		}
		copy(out, g.columns[fromCol])
	case metrics.GEN_CUSTOM:
		for e := range out {
			out[e] = gen.DefaultValue()
		}
	}
	return nil
}

// validateColumns checks the metric invariants: every value finite, and
// non-negative except on coordinate columns.
func (b *Builder) validateColumns(g *Graph) error {
	for c := 0; c < g.registry.Dim(); c++ {
		unit := g.registry.Unit(c)
		signed := unit == metrics.LATITUDE || unit == metrics.LONGITUDE
		for e, v := range g.columns[c] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return util.WrapErrorf(nil, util.ErrDegenerateMetric,
					"metric %q is not finite at edge %d", g.registry.Id(c), e)
			}
			if !signed && v < 0 {
				return util.WrapErrorf(nil, util.ErrDegenerateMetric,
					"metric %q is negative at edge %d", g.registry.Id(c), e)
			}
		}
	}
	return nil
}

func (b *Builder) normalize(g *Graph) error {
	if len(g.edges) == 0 {
		return nil
	}
	for c := 0; c < g.registry.Dim(); c++ {
		if !g.registry.WillNormalize(c) {
			continue
		}
		sum := 0.0
		for _, v := range g.columns[c] {
			sum += v
		}
		mean := sum / float64(len(g.edges))
		if mean <= 0 {
			return util.WrapErrorf(nil, util.ErrDegenerateMetric,
				"metric %q has mean %f, cannot normalize", g.registry.Id(c), mean)
		}
		for e := range g.columns[c] {
			g.columns[c][e] /= mean
		}
		g.registry.SetMean(c, mean)
	}
	return nil
}

// validateContraction checks the CH invariants: levels are non-negative and
// every shortcut's children exist and compose src -> via -> dst.
func validateContraction(g *Graph) error {
	for v := range g.nodes {
		if g.nodes[v].level < 0 {
			return util.WrapErrorf(nil, util.ErrParse, "node %d has negative level %d", v, g.nodes[v].level)
		}
	}
	for e := range g.edges {
		edge := &g.edges[e]
		if !edge.IsShortcut() {
			continue
		}
		c1, c2 := edge.GetChildren()
		if int(c1) >= len(g.edges) || int(c2) >= len(g.edges) || c1 == Index(e) || c2 == Index(e) {
			return util.WrapErrorf(nil, util.ErrParse, "shortcut %d has invalid children", e)
		}
		first, second := &g.edges[c1], &g.edges[c2]
		if first.src != edge.src || second.dst != edge.dst || first.dst != second.src {
			return util.WrapErrorf(nil, util.ErrParse,
				"shortcut %d children do not compose %d -> %d", e, edge.src, edge.dst)
		}
	}
	return nil
}
