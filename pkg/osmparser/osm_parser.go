package osmparser

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/geo"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

type nodeCoord struct {
	lat float64
	lon float64
}

type scannedWay struct {
	id       int64
	nodes    []int64
	hwType   pkg.OsmHighwayType
	speedKmh float64
	lanes    float64
	oneWay   bool
	reversed bool
}

// OsmParser streams an .osm.pbf or .osm xml file and expands the drivable
// ways into directed raw edges for the graph builder. Undirected ways become
// two edges; `oneway=-1` flips the node order.
type OsmParser struct {
	category     pkg.VehicleCategory
	pickyDrivers bool
	logger       *zap.Logger

	wayNodeSet map[int64]struct{}
	nodeCoords map[int64]nodeCoord
	ways       []scannedWay
}

func NewOsmParser(category pkg.VehicleCategory, pickyDrivers bool, logger *zap.Logger) *OsmParser {
	return &OsmParser{
		category:     category,
		pickyDrivers: pickyDrivers,
		logger:       logger,
		wayNodeSet:   make(map[int64]struct{}),
		nodeCoords:   make(map[int64]nodeCoord),
	}
}

var skipHighway = map[string]struct{}{
	"footway":      {},
	"construction": {},
	"cycleway":     {},
	"path":         {},
	"pedestrian":   {},
	"busway":       {},
	"steps":        {},
	"bridleway":    {},
	"corridor":     {},
	"elevator":     {},
	"platform":     {},
	"proposed":     {},
	"raceway":      {},
	"bus_guideway": {},
}

func (p *OsmParser) acceptWay(way *osm.Way) bool {
	highway := way.Tags.Find("highway")
	if highway == "" {
		return false
	}
	if _, skip := skipHighway[highway]; skip {
		return false
	}
	hwType := pkg.GetHighwayType(highway)
	if hwType == pkg.UNKNOWN && highway != "road" {
		return false
	}
	if p.category != pkg.CAR {
		return false
	}
	if p.pickyDrivers && pkg.IsUncomfortableForCar(hwType) {
		return false
	}
	if way.Tags.Find("motor_vehicle") == "no" || way.Tags.Find("access") == "no" {
		return false
	}
	return true
}

func newScanner(mapFile string, f *os.File) (osm.Scanner, error) {
	if strings.HasSuffix(mapFile, ".pbf") {
		return osmpbf.New(context.Background(), f, 0), nil
	}
	if strings.HasSuffix(mapFile, ".osm") || strings.HasSuffix(mapFile, ".xml") {
		return osmxml.New(context.Background(), f), nil
	}
	return nil, util.WrapErrorf(nil, util.ErrBadConfig, "unsupported map file extension of %s", mapFile)
}

// Parse scans the map file twice (ways, then the nodes they reference) and
// builds the graph with the given registry and metric generators.
func (p *OsmParser) Parse(mapFile string, registry *metrics.Registry,
	generators []metrics.Generator) (*da.Graph, error) {

	f, err := os.Open(mapFile)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "opening %s", mapFile)
	}
	defer f.Close()

	// first pass: collect accepted ways and the node ids they reference
	scanner, err := newScanner(mapFile, f)
	if err != nil {
		return nil, err
	}
	countWays := 0
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || len(way.Nodes) < 2 || !p.acceptWay(way) {
			continue
		}
		if (countWays+1)%50000 == 0 {
			p.logger.Sugar().Infof("reading openstreetmap ways: %d...", countWays+1)
		}
		countWays++

		sw := scannedWay{
			id:     int64(way.ID),
			nodes:  make([]int64, 0, len(way.Nodes)),
			hwType: pkg.GetHighwayType(way.Tags.Find("highway")),
		}
		for _, n := range way.Nodes {
			sw.nodes = append(sw.nodes, int64(n.ID))
			p.wayNodeSet[int64(n.ID)] = struct{}{}
		}
		sw.speedKmh = parseMaxspeed(way.Tags.Find("maxspeed"), sw.hwType)
		sw.lanes = parseLanes(way.Tags.Find("lanes"))
		oneway := way.Tags.Find("oneway")
		sw.oneWay = oneway == "yes" || oneway == "-1" || sw.hwType == pkg.MOTORWAY
		sw.reversed = oneway == "-1"
		p.ways = append(p.ways, sw)
	}
	if err := scanner.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrParse, "scanning ways of %s", mapFile)
	}
	scanner.Close()

	// second pass: materialize the referenced node coordinates
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "rewinding %s", mapFile)
	}
	scanner, err = newScanner(mapFile, f)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := p.wayNodeSet[int64(node.ID)]; !needed {
			continue
		}
		p.nodeCoords[int64(node.ID)] = nodeCoord{lat: node.Lat, lon: node.Lon}
	}
	if err := scanner.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrParse, "scanning nodes of %s", mapFile)
	}

	p.logger.Sugar().Infof("accepted %d ways over %d nodes", len(p.ways), len(p.nodeCoords))

	return p.buildGraph(registry, generators)
}

func (p *OsmParser) buildGraph(registry *metrics.Registry,
	generators []metrics.Generator) (*da.Graph, error) {

	builder := da.NewBuilder(registry, generators, p.logger)
	for id, coord := range p.nodeCoords {
		builder.AddNode(da.RawNode{OsmID: id, Lat: coord.lat, Lon: coord.lon})
	}

	// parsed columns are matched by unit; generated columns stay zero until
	// the builder evaluates them
	kmCols, speedCols, laneCols := columnsByUnit(registry, generators)

	for _, way := range p.ways {
		nodes := way.nodes
		if way.reversed {
			nodes = util.ReverseG(nodes)
		}
		for i := 0; i+1 < len(nodes); i++ {
			from, to := nodes[i], nodes[i+1]
			cFrom, okFrom := p.nodeCoords[from]
			cTo, okTo := p.nodeCoords[to]
			if !okFrom || !okTo {
				// the builder would drop these anyway, skip the lookup noise
				continue
			}
			lengthKm := geo.CalculateHaversineDistance(cFrom.lat, cFrom.lon, cTo.lat, cTo.lon)

			ms := make([]float64, registry.Dim())
			for _, c := range kmCols {
				ms[c] = lengthKm
			}
			for _, c := range speedCols {
				ms[c] = way.speedKmh
			}
			for _, c := range laneCols {
				ms[c] = way.lanes
			}

			builder.AddEdge(da.RawEdge{
				SrcOsmID: from, DstOsmID: to, OsmID: way.id,
				Metrics: ms, Child1: da.NO_CHILD, Child2: da.NO_CHILD,
			})
			if !way.oneWay {
				rev := make([]float64, len(ms))
				copy(rev, ms)
				builder.AddEdge(da.RawEdge{
					SrcOsmID: to, DstOsmID: from, OsmID: way.id,
					Metrics: rev, Child1: da.NO_CHILD, Child2: da.NO_CHILD,
				})
			}
		}
	}

	return builder.Build()
}

// columnsByUnit lists the non-generated registry columns the parser fills
// directly from osm data.
func columnsByUnit(registry *metrics.Registry, generators []metrics.Generator) (km, speed, lanes []int) {
	generated := make(map[string]struct{}, len(generators))
	for _, g := range generators {
		generated[g.Result()] = struct{}{}
	}
	for c := 0; c < registry.Dim(); c++ {
		if _, isGen := generated[registry.Id(c)]; isGen {
			continue
		}
		switch registry.Unit(c) {
		case metrics.KILOMETERS:
			km = append(km, c)
		case metrics.KILOMETERS_PER_HOUR:
			speed = append(speed, c)
		case metrics.LANE_COUNT:
			lanes = append(lanes, c)
		}
	}
	return km, speed, lanes
}

// parseMaxspeed turns the tagged maxspeed into km/h, falling back to the
// street-type default. Values are clamped into [MIN_SPEED_KMH, MAX_SPEED_KMH].
func parseMaxspeed(tag string, hwType pkg.OsmHighwayType) float64 {
	if tag == "" {
		return pkg.GetDefaultSpeedKmh(hwType)
	}
	switch tag {
	case "none", "signals", "variable":
		return pkg.MAX_SPEED_KMH
	case "walk":
		return pkg.MIN_SPEED_KMH
	}

	snippet := tag
	factor := 1.0
	if strings.Contains(snippet, "mph") {
		snippet = strings.ReplaceAll(snippet, "mph", "")
		factor = 1.609344
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(snippet), 64)
	if err != nil {
		return pkg.GetDefaultSpeedKmh(hwType)
	}
	val *= factor
	if val < pkg.MIN_SPEED_KMH {
		return pkg.MIN_SPEED_KMH
	}
	if val > pkg.MAX_SPEED_KMH {
		return pkg.MAX_SPEED_KMH
	}
	return val
}

func parseLanes(tag string) float64 {
	if tag == "" {
		return 1
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(tag), 64)
	if err != nil || val < 1 {
		return 1
	}
	return val
}
