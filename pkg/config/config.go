package config

import (
	"math"

	"github.com/spf13/viper"

	"github.com/lintas-routing/balancegraph/pkg"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// Config is the typed view of the yaml configuration. Section shapes follow
// the original file layout; viper handles the decoding, validation happens
// here.
type Config struct {
	Parsing   Parsing   `mapstructure:"parsing"`
	Routing   Routing   `mapstructure:"routing"`
	Balancing Balancing `mapstructure:"balancing"`
	Writing   Writing   `mapstructure:"writing"`
}

type ColumnDecl struct {
	Kind string `mapstructure:"kind"` // meta | metric | ignored
	Info string `mapstructure:"info"` // meta kinds: NodeId, Latitude, Longitude, Level, SrcId, DstId, EdgeId, ShortcutIdx0, ShortcutIdx1
	ID   string `mapstructure:"id"`
	Unit string `mapstructure:"unit"`
}

type Vehicles struct {
	Category        string `mapstructure:"category"`
	AreDriversPicky bool   `mapstructure:"are_drivers_picky"`
}

type EdgesDecl struct {
	Data                       []ColumnDecl `mapstructure:"data"`
	WillNormalizeMetricsByMean bool         `mapstructure:"will_normalize_metrics_by_mean"`
}

type HaversineDecl struct {
	ID string `mapstructure:"id"`
}

type CalcDecl struct {
	Result string `mapstructure:"result"`
	Unit   string `mapstructure:"unit"`
	A      string `mapstructure:"a"`
	B      string `mapstructure:"b"`
}

type CopyDecl struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
	Unit string `mapstructure:"unit"`
}

type CustomDecl struct {
	ID      string  `mapstructure:"id"`
	Unit    string  `mapstructure:"unit"`
	Default float64 `mapstructure:"default"`
}

type GeneratorDecl struct {
	Haversine *HaversineDecl `mapstructure:"haversine"`
	Calc      *CalcDecl      `mapstructure:"calc"`
	Copy      *CopyDecl      `mapstructure:"copy"`
	Custom    *CustomDecl    `mapstructure:"custom"`
}

type GeneratingDecl struct {
	Edges []GeneratorDecl `mapstructure:"edges"`
}

type Parsing struct {
	MapFile    string         `mapstructure:"map-file"`
	Vehicles   Vehicles       `mapstructure:"vehicles"`
	Nodes      []ColumnDecl   `mapstructure:"nodes"`
	Edges      EdgesDecl      `mapstructure:"edges"`
	Generating GeneratingDecl `mapstructure:"generating"`
}

type RoutingMetric struct {
	ID             string   `mapstructure:"id"`
	Alpha          float64  `mapstructure:"alpha"`
	ToleratedScale *float64 `mapstructure:"tolerated-scale"`
}

type Routing struct {
	Algorithm      string          `mapstructure:"algorithm"`
	Metrics        []RoutingMetric `mapstructure:"metrics"`
	RoutePairsFile string          `mapstructure:"route-pairs-file"`
	MaxPaths       int             `mapstructure:"max-paths"`
}

type OptimizingWith struct {
	MetricID   string  `mapstructure:"metric-id"`
	Method     string  `mapstructure:"method"` // averaging | explicit_euler
	Correction float64 `mapstructure:"correction"`
}

type MultiChConstructor struct {
	Enabled          bool    `mapstructure:"enabled"`
	Binary           string  `mapstructure:"binary"`
	ContractionRatio float64 `mapstructure:"contraction-ratio"`
	NumThreads       int     `mapstructure:"number_of_threads"`
}

type EdgesInfo struct {
	File                         string   `mapstructure:"file"`
	WithShortcuts                bool     `mapstructure:"with_shortcuts"`
	WillDenormalizeMetricsByMean bool     `mapstructure:"will_denormalize_metrics_by_mean"`
	IDs                          []string `mapstructure:"ids"`
}

type Monitoring struct {
	EdgesInfo     EdgesInfo `mapstructure:"edges-info"`
	VehicleTraces string    `mapstructure:"vehicle-traces"`
}

type Balancing struct {
	Seed                  int64              `mapstructure:"seed"`
	NumberOfThreads       int                `mapstructure:"number_of_threads"`
	ResultsDir            string             `mapstructure:"results-dir"`
	Iter0Cfg              string             `mapstructure:"iter-0-cfg"`
	IterICfg              string             `mapstructure:"iter-i-cfg"`
	OptimizingWith        OptimizingWith     `mapstructure:"optimizing_with"`
	NumberOfMetricUpdates int                `mapstructure:"number_of_metric-updates"`
	MinNewMetric          float64            `mapstructure:"min_new_metric"`
	MultiChConstructor    MultiChConstructor `mapstructure:"multi-ch-constructor"`
	Monitoring            Monitoring         `mapstructure:"monitoring"`
}

type WritingGraph struct {
	File                         string       `mapstructure:"file"`
	Nodes                        []ColumnDecl `mapstructure:"nodes"`
	Edges                        []ColumnDecl `mapstructure:"edges"`
	WillDenormalizeMetricsByMean bool         `mapstructure:"will_denormalize_metrics_by_mean"`
	Compress                     bool         `mapstructure:"compress"`
}

type Writing struct {
	Graph WritingGraph `mapstructure:"graph"`
}

// ReadConfig loads and validates the yaml file at path.
func ReadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "reading config %s", path)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadConfig, "decoding config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Parsing.MapFile == "" {
		return util.WrapErrorf(nil, util.ErrBadConfig, "parsing.map-file is missing")
	}
	if c.Parsing.Vehicles.Category != "" &&
		pkg.GetVehicleCategory(c.Parsing.Vehicles.Category) == pkg.UNSUPPORTED_VEHICLE {
		return util.WrapErrorf(nil, util.ErrBadConfig,
			"unsupported vehicle category %q", c.Parsing.Vehicles.Category)
	}
	for _, decl := range c.Parsing.Edges.Data {
		if decl.Kind == "metric" && decl.ID == "" {
			return util.WrapErrorf(nil, util.ErrBadConfig, "metric column without an id")
		}
	}
	if c.Balancing.OptimizingWith.Method != "" {
		switch c.Balancing.OptimizingWith.Method {
		case "averaging":
		case "explicit_euler":
			if c.Balancing.OptimizingWith.Correction <= 0 {
				return util.WrapErrorf(nil, util.ErrBadConfig,
					"explicit_euler needs a positive correction")
			}
		default:
			return util.WrapErrorf(nil, util.ErrBadConfig,
				"unknown optimization method %q", c.Balancing.OptimizingWith.Method)
		}
	}
	return nil
}

// BuildRegistry registers every declared metric column (parsed and generated)
// and returns the generator list in declaration order.
func (p *Parsing) BuildRegistry() (*metrics.Registry, []metrics.Generator, error) {
	registry := metrics.NewRegistry()
	normalize := p.Edges.WillNormalizeMetricsByMean

	for _, decl := range p.Edges.Data {
		if decl.Kind != "metric" {
			continue
		}
		unit, err := metrics.ParseUnit(decl.Unit)
		if err != nil {
			return nil, nil, err
		}
		if _, err := registry.Register(decl.ID, unit, normalize); err != nil {
			return nil, nil, err
		}
	}

	// generated columns are never mean-normalized: a custom default of zero
	// (the usual workload seed) has mean zero, and the balancing loop folds
	// raw counts into the column anyway
	generators := make([]metrics.Generator, 0, len(p.Generating.Edges))
	for _, decl := range p.Generating.Edges {
		gen, unit, id, err := decodeGenerator(decl)
		if err != nil {
			return nil, nil, err
		}
		if _, err := registry.Register(id, unit, false); err != nil {
			return nil, nil, err
		}
		generators = append(generators, gen)
	}
	return registry, generators, nil
}

func decodeGenerator(decl GeneratorDecl) (metrics.Generator, metrics.Unit, string, error) {
	switch {
	case decl.Haversine != nil:
		return metrics.NewHaversineGenerator(decl.Haversine.ID), metrics.KILOMETERS, decl.Haversine.ID, nil
	case decl.Calc != nil:
		unit, err := metrics.ParseUnit(decl.Calc.Unit)
		if err != nil {
			return metrics.Generator{}, metrics.F64, "", err
		}
		return metrics.NewCalcGenerator(decl.Calc.Result, unit, decl.Calc.A, decl.Calc.B),
			unit, decl.Calc.Result, nil
	case decl.Copy != nil:
		unit, err := metrics.ParseUnit(decl.Copy.Unit)
		if err != nil {
			return metrics.Generator{}, metrics.F64, "", err
		}
		return metrics.NewCopyGenerator(decl.Copy.From, decl.Copy.To, unit), unit, decl.Copy.To, nil
	case decl.Custom != nil:
		unit, err := metrics.ParseUnit(decl.Custom.Unit)
		if err != nil {
			return metrics.Generator{}, metrics.F64, "", err
		}
		return metrics.NewCustomGenerator(decl.Custom.ID, unit, decl.Custom.Default),
			unit, decl.Custom.ID, nil
	default:
		return metrics.Generator{}, metrics.F64, "",
			util.WrapErrorf(nil, util.ErrBadConfig, "generator entry declares no kind")
	}
}

func columnSchema(decls []ColumnDecl, nodeSide bool) ([]da.NodeColumnKind, []da.EdgeColumn, error) {
	var nodeCols []da.NodeColumnKind
	var edgeCols []da.EdgeColumn
	for _, decl := range decls {
		switch decl.Kind {
		case "ignored":
			if nodeSide {
				nodeCols = append(nodeCols, da.NODE_COL_IGNORED)
			} else {
				edgeCols = append(edgeCols, da.EdgeColumn{Kind: da.EDGE_COL_IGNORED})
			}
		case "metric":
			if nodeSide {
				return nil, nil, util.WrapErrorf(nil, util.ErrBadConfig,
					"node column %q cannot be a metric", decl.ID)
			}
			edgeCols = append(edgeCols, da.EdgeColumn{Kind: da.EDGE_COL_METRIC, MetricID: decl.ID})
		case "meta":
			if nodeSide {
				kind, err := nodeMetaKind(decl.Info)
				if err != nil {
					return nil, nil, err
				}
				nodeCols = append(nodeCols, kind)
			} else {
				kind, err := edgeMetaKind(decl.Info)
				if err != nil {
					return nil, nil, err
				}
				edgeCols = append(edgeCols, da.EdgeColumn{Kind: kind})
			}
		default:
			return nil, nil, util.WrapErrorf(nil, util.ErrBadConfig, "unknown column kind %q", decl.Kind)
		}
	}
	return nodeCols, edgeCols, nil
}

func nodeMetaKind(info string) (da.NodeColumnKind, error) {
	switch info {
	case "NodeId":
		return da.NODE_COL_ID, nil
	case "Latitude":
		return da.NODE_COL_LAT, nil
	case "Longitude":
		return da.NODE_COL_LON, nil
	case "Level":
		return da.NODE_COL_LEVEL, nil
	default:
		return da.NODE_COL_IGNORED, util.WrapErrorf(nil, util.ErrBadConfig, "unknown node meta info %q", info)
	}
}

func edgeMetaKind(info string) (da.EdgeColumnKind, error) {
	switch info {
	case "SrcId":
		return da.EDGE_COL_SRC, nil
	case "DstId":
		return da.EDGE_COL_DST, nil
	case "EdgeId":
		return da.EDGE_COL_ID, nil
	case "ShortcutIdx0":
		return da.EDGE_COL_CH_CHILD1, nil
	case "ShortcutIdx1":
		return da.EDGE_COL_CH_CHILD2, nil
	default:
		return da.EDGE_COL_IGNORED, util.WrapErrorf(nil, util.ErrBadConfig, "unknown edge meta info %q", info)
	}
}

// FmiSchema derives the text-graph schema of the parsing section.
func (p *Parsing) FmiSchema() (da.FmiSchema, error) {
	nodeCols, _, err := columnSchema(p.Nodes, true)
	if err != nil {
		return da.FmiSchema{}, err
	}
	_, edgeCols, err := columnSchema(p.Edges.Data, false)
	if err != nil {
		return da.FmiSchema{}, err
	}
	return da.FmiSchema{NodeColumns: nodeCols, EdgeColumns: edgeCols}, nil
}

// FmiSchema derives the output schema of the writing.graph section.
func (w *WritingGraph) FmiSchema() (da.FmiSchema, error) {
	nodeCols, _, err := columnSchema(w.Nodes, true)
	if err != nil {
		return da.FmiSchema{}, err
	}
	_, edgeCols, err := columnSchema(w.Edges, false)
	if err != nil {
		return da.FmiSchema{}, err
	}
	return da.FmiSchema{NodeColumns: nodeCols, EdgeColumns: edgeCols}, nil
}

// ActiveMetrics splits the routing metrics into cost-function inputs. Metrics
// with alpha 0 contribute nothing to the cost but may still constrain the
// explorator through their tolerated scale.
func (r *Routing) ActiveMetrics() (ids []string, alphas []float64) {
	for _, m := range r.Metrics {
		if m.Alpha > 0 {
			ids = append(ids, m.ID)
			alphas = append(alphas, m.Alpha)
		}
	}
	return ids, alphas
}

// ToleratedScales lists (metric id, scale) for every metric carrying a
// tolerated-scale. A missing scale means the metric is unconstrained.
func (r *Routing) ToleratedScales() (ids []string, scales []float64) {
	for _, m := range r.Metrics {
		if m.ToleratedScale == nil {
			continue
		}
		scale := *m.ToleratedScale
		if scale <= 0 {
			scale = math.Inf(1)
		}
		ids = append(ids, m.ID)
		scales = append(scales, scale)
	}
	return ids, scales
}

// ReadRoutingConfig loads a standalone routing config, as referenced by
// balancing.iter-0-cfg and iter-i-cfg.
func ReadRoutingConfig(path string) (*Routing, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "reading routing config %s", path)
	}
	var wrapper struct {
		Routing Routing `mapstructure:"routing"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadConfig, "decoding routing config %s", path)
	}
	if wrapper.Routing.MaxPaths <= 0 {
		wrapper.Routing.MaxPaths = 8
	}
	return &wrapper.Routing, nil
}
