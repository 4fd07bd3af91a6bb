package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lintas-routing/balancegraph/pkg"
	"github.com/lintas-routing/balancegraph/pkg/config"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/logger"
	"github.com/lintas-routing/balancegraph/pkg/osmparser"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

var (
	cfgPath  = flag.String("config", "./config.yaml", "path to the yaml config")
	logLevel = flag.String("log-level", "info", "zap log level")
)

// mapgenerator parses a map per the parsing section and writes the graph per
// writing.graph, e.g. to turn an osm extract into the fmi interchange format.
func main() {
	flag.Parse()
	log, err := logger.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", util.CodeOf(err), err)
		os.Exit(1)
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.ReadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if cfg.Writing.Graph.File == "" {
		return util.WrapErrorf(nil, util.ErrBadConfig, "writing.graph.file is missing")
	}
	outSchema, err := cfg.Writing.Graph.FmiSchema()
	if err != nil {
		return err
	}

	registry, generators, err := cfg.Parsing.BuildRegistry()
	if err != nil {
		return err
	}

	var graph *da.Graph
	mapFile := cfg.Parsing.MapFile
	switch {
	case strings.HasSuffix(mapFile, ".pbf"), strings.HasSuffix(mapFile, ".osm"),
		strings.HasSuffix(mapFile, ".xml"):
		parser := osmparser.NewOsmParser(
			pkg.GetVehicleCategory(cfg.Parsing.Vehicles.Category),
			cfg.Parsing.Vehicles.AreDriversPicky, log)
		graph, err = parser.Parse(mapFile, registry, generators)
	default:
		var schema da.FmiSchema
		if schema, err = cfg.Parsing.FmiSchema(); err == nil {
			graph, err = da.ReadFmi(mapFile, schema, registry, generators, log)
		}
	}
	if err != nil {
		return err
	}
	log.Sugar().Infof("parsed graph: %d nodes, %d edges", graph.NumberOfNodes(), graph.NumberOfEdges())

	// the plain and bz2-compressed outputs are independent, write them in
	// parallel
	var g errgroup.Group
	g.Go(func() error {
		return da.WriteFmi(graph, cfg.Writing.Graph.File, outSchema,
			cfg.Writing.Graph.WillDenormalizeMetricsByMean)
	})
	if cfg.Writing.Graph.Compress && !strings.HasSuffix(cfg.Writing.Graph.File, ".bz2") {
		compressed := cfg.Writing.Graph.File + ".bz2"
		g.Go(func() error {
			return da.WriteFmi(graph, compressed, outSchema,
				cfg.Writing.Graph.WillDenormalizeMetricsByMean)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Sugar().Infof("wrote %s", cfg.Writing.Graph.File)
	return nil
}
