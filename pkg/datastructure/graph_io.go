package datastructure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// fmi is a plain-text graph format: a comment header, three counts
// (metric-count, node-count, edge-count) and one whitespace-separated line per
// node and per edge. Column meanings are not fixed by the format; the caller's
// schema declares them. CH-augmented files add a level column on nodes and two
// child edge-indices on edges (-1 -1 for original edges).

type NodeColumnKind uint8

const (
	NODE_COL_ID NodeColumnKind = iota
	NODE_COL_LAT
	NODE_COL_LON
	NODE_COL_LEVEL
	NODE_COL_IGNORED
)

type EdgeColumnKind uint8

const (
	EDGE_COL_SRC EdgeColumnKind = iota
	EDGE_COL_DST
	EDGE_COL_ID
	EDGE_COL_METRIC
	EDGE_COL_CH_CHILD1
	EDGE_COL_CH_CHILD2
	EDGE_COL_IGNORED
)

type EdgeColumn struct {
	Kind     EdgeColumnKind
	MetricID string
}

type FmiSchema struct {
	NodeColumns []NodeColumnKind
	EdgeColumns []EdgeColumn
}

func (s FmiSchema) HasCH() bool {
	for _, c := range s.EdgeColumns {
		if c.Kind == EDGE_COL_CH_CHILD1 {
			return true
		}
	}
	return false
}

func (s FmiSchema) metricCount() int {
	n := 0
	for _, c := range s.EdgeColumns {
		if c.Kind == EDGE_COL_METRIC {
			n++
		}
	}
	return n
}

// openMaybeBzip2 opens path for reading, transparently decompressing .bz2.
func openMaybeBzip2(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "opening %s", path)
	}
	if !strings.HasSuffix(path, ".bz2") {
		return f, nil
	}
	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		f.Close()
		return nil, util.WrapErrorf(err, util.ErrIO, "opening bzip2 stream of %s", path)
	}
	return struct {
		io.Reader
		io.Closer
	}{bz, f}, nil
}

func createMaybeBzip2(path string) (io.WriteCloser, *os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, util.WrapErrorf(err, util.ErrIO, "creating %s", path)
	}
	if !strings.HasSuffix(path, ".bz2") {
		return f, f, nil
	}
	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		f.Close()
		return nil, nil, util.WrapErrorf(err, util.ErrIO, "creating bzip2 stream of %s", path)
	}
	return bz, f, nil
}

type fmiScanner struct {
	scanner *bufio.Scanner
	file    string
	line    int
}

// nextLine returns the next non-empty, non-comment line.
func (s *fmiScanner) nextLine() (string, bool) {
	for s.scanner.Scan() {
		s.line++
		line := strings.TrimSpace(s.scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return line, true
	}
	return "", false
}

func (s *fmiScanner) parseErr(reason string) error {
	return util.WrapErrorf(nil, util.ErrParse, "%s:%d: %s", s.file, s.line, reason)
}

func (s *fmiScanner) nextCount(what string) (int, error) {
	line, ok := s.nextLine()
	if !ok {
		return 0, s.parseErr(fmt.Sprintf("missing %s", what))
	}
	val, err := strconv.Atoi(line)
	if err != nil || val < 0 {
		return 0, s.parseErr(fmt.Sprintf("bad %s %q", what, line))
	}
	return val, nil
}

// ReadFmi parses an fmi text graph per the caller's schema and builds the
// CSR graph from it.
func ReadFmi(path string, schema FmiSchema, registry *metrics.Registry,
	generators []metrics.Generator, logger *zap.Logger) (*Graph, error) {

	r, err := openMaybeBzip2(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	sc := &fmiScanner{scanner: bufio.NewScanner(r), file: path}
	sc.scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	metricCount, err := sc.nextCount("metric count")
	if err != nil {
		return nil, err
	}
	if metricCount != schema.metricCount() {
		return nil, sc.parseErr(fmt.Sprintf("file declares %d metrics, schema declares %d",
			metricCount, schema.metricCount()))
	}
	nodeCount, err := sc.nextCount("node count")
	if err != nil {
		return nil, err
	}
	edgeCount, err := sc.nextCount("edge count")
	if err != nil {
		return nil, err
	}

	builder := NewBuilder(registry, generators, logger)
	builder.SetWithCH(schema.HasCH())

	metricCols := make([]int, len(schema.EdgeColumns))
	for i, col := range schema.EdgeColumns {
		metricCols[i] = -1
		if col.Kind == EDGE_COL_METRIC {
			c, err := registry.TryIdx(col.MetricID)
			if err != nil {
				return nil, err
			}
			metricCols[i] = c
		}
	}

	for i := 0; i < nodeCount; i++ {
		line, ok := sc.nextLine()
		if !ok {
			return nil, sc.parseErr("unexpected end of file while reading nodes")
		}
		fields := strings.Fields(line)
		if len(fields) != len(schema.NodeColumns) {
			return nil, sc.parseErr(fmt.Sprintf("node line has %d columns, schema declares %d",
				len(fields), len(schema.NodeColumns)))
		}
		node := RawNode{}
		for j, kind := range schema.NodeColumns {
			switch kind {
			case NODE_COL_ID:
				id, err := strconv.ParseInt(fields[j], 10, 64)
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("bad node id %q", fields[j]))
				}
				node.OsmID = id
			case NODE_COL_LAT:
				v, err := util.StringToFloat64(fields[j])
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("bad latitude %q", fields[j]))
				}
				node.Lat = v
			case NODE_COL_LON:
				v, err := util.StringToFloat64(fields[j])
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("bad longitude %q", fields[j]))
				}
				node.Lon = v
			case NODE_COL_LEVEL:
				lvl, err := strconv.ParseInt(fields[j], 10, 32)
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("bad level %q", fields[j]))
				}
				node.Level = int32(lvl)
			}
		}
		builder.AddNode(node)
	}

	for i := 0; i < edgeCount; i++ {
		line, ok := sc.nextLine()
		if !ok {
			return nil, sc.parseErr("unexpected end of file while reading edges")
		}
		fields := strings.Fields(line)
		if len(fields) != len(schema.EdgeColumns) {
			return nil, sc.parseErr(fmt.Sprintf("edge line has %d columns, schema declares %d",
				len(fields), len(schema.EdgeColumns)))
		}
		edge := RawEdge{OsmID: NO_OSM_ID, Child1: NO_CHILD, Child2: NO_CHILD,
			Metrics: make([]float64, registry.Dim())}
		for j, col := range schema.EdgeColumns {
			switch col.Kind {
			case EDGE_COL_SRC, EDGE_COL_DST, EDGE_COL_ID:
				id, err := strconv.ParseInt(fields[j], 10, 64)
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("bad id column %q", fields[j]))
				}
				switch col.Kind {
				case EDGE_COL_SRC:
					edge.SrcOsmID = id
				case EDGE_COL_DST:
					edge.DstOsmID = id
				default:
					edge.OsmID = id
				}
			case EDGE_COL_METRIC:
				v, err := util.StringToFloat64(fields[j])
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("non-numeric metric %q", fields[j]))
				}
				edge.Metrics[metricCols[j]] = v
			case EDGE_COL_CH_CHILD1, EDGE_COL_CH_CHILD2:
				child, err := strconv.ParseInt(fields[j], 10, 32)
				if err != nil {
					return nil, sc.parseErr(fmt.Sprintf("bad child index %q", fields[j]))
				}
				if col.Kind == EDGE_COL_CH_CHILD1 {
					edge.Child1 = int32(child)
				} else {
					edge.Child2 = int32(child)
				}
			}
		}
		builder.AddEdge(edge)
	}

	return builder.Build()
}

// WriteFmi writes the graph per the caller's schema. When the schema carries
// no CH columns, shortcut edges are left out. When denormalize is set, every
// normalized metric column is multiplied back by its stored mean.
func WriteFmi(g *Graph, path string, schema FmiSchema, denormalize bool) error {
	wc, f, err := createMaybeBzip2(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(wc)

	writeErr := writeFmiTo(w, g, schema, denormalize)
	if ferr := w.Flush(); writeErr == nil && ferr != nil {
		writeErr = util.WrapErrorf(ferr, util.ErrIO, "flushing %s", path)
	}
	if wc != io.WriteCloser(f) {
		if cerr := wc.Close(); writeErr == nil && cerr != nil {
			writeErr = util.WrapErrorf(cerr, util.ErrIO, "closing bzip2 stream of %s", path)
		}
	}
	if cerr := f.Close(); writeErr == nil && cerr != nil {
		writeErr = util.WrapErrorf(cerr, util.ErrIO, "closing %s", path)
	}
	return writeErr
}

func writeFmiTo(w *bufio.Writer, g *Graph, schema FmiSchema, denormalize bool) error {
	withShortcuts := schema.HasCH()
	edgeCount := 0
	for e := 0; e < g.NumberOfEdges(); e++ {
		if withShortcuts || !g.GetEdge(Index(e)).IsShortcut() {
			edgeCount++
		}
	}

	fmt.Fprintf(w, "# generated by balancegraph\n")
	fmt.Fprintf(w, "%d\n%d\n%d\n", schema.metricCount(), g.NumberOfNodes(), edgeCount)

	for v := 0; v < g.NumberOfNodes(); v++ {
		node := g.GetNode(Index(v))
		for j, kind := range schema.NodeColumns {
			if j > 0 {
				fmt.Fprint(w, " ")
			}
			switch kind {
			case NODE_COL_ID:
				fmt.Fprintf(w, "%d", node.GetOsmID())
			case NODE_COL_LAT:
				fmt.Fprint(w, strconv.FormatFloat(node.GetLat(), 'f', -1, 64))
			case NODE_COL_LON:
				fmt.Fprint(w, strconv.FormatFloat(node.GetLon(), 'f', -1, 64))
			case NODE_COL_LEVEL:
				fmt.Fprintf(w, "%d", node.GetLevel())
			case NODE_COL_IGNORED:
				fmt.Fprint(w, "0")
			}
		}
		fmt.Fprintln(w)
	}

	for e := 0; e < g.NumberOfEdges(); e++ {
		edge := g.GetEdge(Index(e))
		if edge.IsShortcut() && !withShortcuts {
			continue
		}
		for j, col := range schema.EdgeColumns {
			if j > 0 {
				fmt.Fprint(w, " ")
			}
			switch col.Kind {
			case EDGE_COL_SRC:
				fmt.Fprintf(w, "%d", g.GetNode(edge.GetSrc()).GetOsmID())
			case EDGE_COL_DST:
				fmt.Fprintf(w, "%d", g.GetNode(edge.GetDst()).GetOsmID())
			case EDGE_COL_ID:
				fmt.Fprintf(w, "%d", edge.GetOsmID())
			case EDGE_COL_METRIC:
				c, err := g.registry.TryIdx(col.MetricID)
				if err != nil {
					return err
				}
				val := g.GetMetric(c, Index(e))
				if denormalize {
					val *= g.registry.Mean(c)
				}
				fmt.Fprint(w, strconv.FormatFloat(val, 'f', -1, 64))
			case EDGE_COL_CH_CHILD1, EDGE_COL_CH_CHILD2:
				c1, c2 := int32(NO_CHILD), int32(NO_CHILD)
				if edge.IsShortcut() {
					a, b := edge.GetChildren()
					c1, c2 = int32(a), int32(b)
				}
				if col.Kind == EDGE_COL_CH_CHILD1 {
					fmt.Fprintf(w, "%d", c1)
				} else {
					fmt.Fprintf(w, "%d", c2)
				}
			case EDGE_COL_IGNORED:
				fmt.Fprint(w, "0")
			}
		}
		fmt.Fprintln(w)
	}

	return nil
}
