package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg"
	"github.com/lintas-routing/balancegraph/pkg/balancer"
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

	graph, err := parseGraph(cfg, log)
	if err != nil {
		return err
	}
	log.Sugar().Infof("parsed graph: %d nodes, %d edges, %d metrics",
		graph.NumberOfNodes(), graph.NumberOfEdges(), graph.GetRegistry().Dim())

	b, err := balancer.NewBalancer(cfg, graph, log)
	if err != nil {
		return err
	}
	return b.Run()
}

func parseGraph(cfg *config.Config, log *zap.Logger) (*da.Graph, error) {
	registry, generators, err := cfg.Parsing.BuildRegistry()
	if err != nil {
		return nil, err
	}

	mapFile := cfg.Parsing.MapFile
	switch {
	case strings.HasSuffix(mapFile, ".pbf"), strings.HasSuffix(mapFile, ".osm"),
		strings.HasSuffix(mapFile, ".xml"):
		parser := osmparser.NewOsmParser(
			pkg.GetVehicleCategory(cfg.Parsing.Vehicles.Category),
			cfg.Parsing.Vehicles.AreDriversPicky, log)
		return parser.Parse(mapFile, registry, generators)
	default:
		schema, err := cfg.Parsing.FmiSchema()
		if err != nil {
			return nil, err
		}
		return da.ReadFmi(mapFile, schema, registry, generators, log)
	}
}
