package balancer

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg/concurrent"
	"github.com/lintas-routing/balancegraph/pkg/config"
	"github.com/lintas-routing/balancegraph/pkg/costfunction"
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/engine/routing"
	"github.com/lintas-routing/balancegraph/pkg/metrics"
	"github.com/lintas-routing/balancegraph/pkg/spatialindex"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// Balancer drives the workload-feedback loop: route every demand pair, count
// per-edge workload, fold the counts back into the workload metric, rebuild
// the contraction hierarchy if one is in play, repeat.
type Balancer struct {
	cfg     *config.Config
	graph   *da.Graph
	logger  *zap.Logger
	rng     *rand.Rand
	multiCh *MultiChConstructor
	snap    *spatialindex.Rtree

	workloadCol int
}

func NewBalancer(cfg *config.Config, graph *da.Graph, logger *zap.Logger) (*Balancer, error) {
	bal := cfg.Balancing
	if bal.NumberOfMetricUpdates <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrBadConfig,
			"balancing.number_of_metric-updates must be positive")
	}
	workloadCol, err := graph.GetRegistry().TryIdx(bal.OptimizingWith.MetricID)
	if err != nil {
		return nil, err
	}

	b := &Balancer{
		cfg:         cfg,
		graph:       graph,
		logger:      logger,
		rng:         rand.New(rand.NewSource(bal.Seed)),
		workloadCol: workloadCol,
	}
	if bal.MultiChConstructor.Enabled {
		b.multiCh = NewMultiChConstructor(bal.MultiChConstructor, logger)
	}
	return b, nil
}

// GetGraph returns the current graph handle; it is replaced after every
// contraction rebuild.
func (b *Balancer) GetGraph() *da.Graph {
	return b.graph
}

func (b *Balancer) Run() error {
	bal := b.cfg.Balancing

	if _, err := os.Stat(bal.ResultsDir); err == nil {
		return util.WrapErrorf(nil, util.ErrBadConfig,
			"results dir %s already exists, please remove it", bal.ResultsDir)
	}
	if err := os.MkdirAll(bal.ResultsDir, 0o755); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "creating results dir %s", bal.ResultsDir)
	}

	iter0, err := config.ReadRoutingConfig(bal.Iter0Cfg)
	if err != nil {
		return err
	}
	iterI := iter0
	if bal.IterICfg != "" && bal.IterICfg != bal.Iter0Cfg {
		if iterI, err = config.ReadRoutingConfig(bal.IterICfg); err != nil {
			return err
		}
	}

	pairsFile := iter0.RoutePairsFile
	if pairsFile == "" {
		pairsFile = b.cfg.Routing.RoutePairsFile
	}
	pairs, err := ReadRoutePairs(pairsFile)
	if err != nil {
		return err
	}
	b.logger.Sugar().Infof("balancing %d route pairs over %d rounds",
		len(pairs), bal.NumberOfMetricUpdates)

	for _, pair := range pairs {
		if pair.ByCoords {
			b.buildSnapIndex()
			break
		}
	}

	for iter := 0; iter < bal.NumberOfMetricUpdates; iter++ {
		rcfg := iterI
		if iter == 0 {
			rcfg = iter0
		}
		b.logger.Sugar().Infof("START iteration %d / %d", iter, bal.NumberOfMetricUpdates-1)
		if err := b.runRound(iter, rcfg, pairs); err != nil {
			return err
		}
	}
	return nil
}

func (b *Balancer) newRouter(rcfg *config.Routing) (routing.Router, error) {
	algo, err := routing.ParseAlgorithm(rcfg.Algorithm)
	if err != nil {
		return nil, err
	}
	ids, alphas := rcfg.ActiveMetrics()
	cost, err := costfunction.NewCostFunction(b.graph, ids, alphas)
	if err != nil {
		return nil, err
	}

	switch algo {
	case routing.ALGO_DIJKSTRA:
		return routing.NewDijkstra(b.graph, cost), nil
	case routing.ALGO_BIDIRECTIONAL_DIJKSTRA:
		return routing.NewBidirectionalDijkstra(b.graph, cost), nil
	case routing.ALGO_CH_DIJKSTRA:
		// round 0 lands here without a precomputed hierarchy; the constructor
		// rejects that instead of silently querying stale contractions
		return routing.NewCHDijkstra(b.graph, cost)
	default:
		constraintIDs, scales := rcfg.ToleratedScales()
		constraints := make([]routing.Constraint, 0, len(constraintIDs))
		for i, id := range constraintIDs {
			col, err := b.graph.GetRegistry().TryIdx(id)
			if err != nil {
				return nil, err
			}
			c, err := routing.NewConstraint(id, col, scales[i])
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, c)
		}
		return routing.NewExplorator(b.graph, cost, constraints, rcfg.MaxPaths)
	}
}

func (b *Balancer) runRound(iter int, rcfg *config.Routing, pairs []RoutePair) error {
	bal := b.cfg.Balancing

	router, err := b.newRouter(rcfg)
	if err != nil {
		return err
	}

	shuffled := make([]RoutePair, len(pairs))
	copy(shuffled, pairs)
	b.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	numWorkers := bal.NumberOfThreads
	if numWorkers <= 0 {
		numWorkers = 1
	}

	// per-worker workload shards; job i always lands on worker i mod T, so
	// the reduced array is reproducible for a fixed seed
	numEdges := b.graph.NumberOfEdges()
	shards := make([][]float64, numWorkers)
	traceShards := make([][]VehicleTrace, numWorkers)
	for w := range shards {
		shards[w] = make([]float64, numEdges)
	}
	recordTraces := bal.Monitoring.VehicleTraces != ""

	pool := concurrent.NewWorkerPool[RoutePair](numWorkers, len(shuffled))
	pool.Start(func(workerID int, pair RoutePair) {
		b.routePair(workerID, pair, router, shards, traceShards, recordTraces)
	})
	for _, pair := range shuffled {
		pool.AddJob(pair)
	}
	pool.Close()
	pool.Wait()

	workload := shards[0]
	for w := 1; w < numWorkers; w++ {
		for e := range workload {
			workload[e] += shards[w][e]
		}
	}

	b.foldWorkload(iter, workload)

	if err := b.writeRoundDiagnostics(iter, traceShards); err != nil {
		return err
	}

	if b.multiCh != nil {
		if err := b.rebuildContraction(iter); err != nil {
			return err
		}
	}
	return nil
}

func (b *Balancer) buildSnapIndex() {
	b.snap = spatialindex.NewRtree()
	b.snap.Build(b.graph, b.logger)
}

func (b *Balancer) resolveEndpoints(pair RoutePair) (da.Index, da.Index, bool) {
	if !pair.ByCoords {
		s, okS := b.graph.IndexOfOsmID(pair.SrcID)
		t, okT := b.graph.IndexOfOsmID(pair.DstID)
		return s, t, okS && okT
	}
	s, okS := b.snap.NearestNode(pair.SrcLat, pair.SrcLon)
	t, okT := b.snap.NearestNode(pair.DstLat, pair.DstLon)
	return s, t, okS && okT
}

func (b *Balancer) routePair(workerID int, pair RoutePair, router routing.Router,
	shards [][]float64, traceShards [][]VehicleTrace, recordTraces bool) {

	s, t, ok := b.resolveEndpoints(pair)
	if !ok {
		b.logger.Sugar().Warnf("route pair (%d, %d) does not resolve to graph nodes, skipping",
			pair.SrcID, pair.DstID)
		return
	}

	paths, err := router.Route(s, t)
	if err != nil || len(paths) == 0 {
		// a failed query contributes nothing; the round goes on
		b.logger.Sugar().Warnf("query (%d, %d) failed: %v", pair.SrcID, pair.DstID, err)
		return
	}

	// alternatives are weighted equally; the pair's demand splits over them
	share := float64(pair.Count) / float64(len(paths))
	w := shards[workerID]
	for _, p := range paths {
		for _, e := range routing.UnpackEdges(b.graph, p.GetEdges()) {
			w[e] += share
		}
		if recordTraces {
			traceShards[workerID] = append(traceShards[workerID], VehicleTrace{
				SrcID:    pair.SrcID,
				DstID:    pair.DstID,
				Polyline: EncodeTrace(b.graph, p),
			})
		}
	}
}

// foldWorkload folds the accumulated counts into the workload metric column
// and clamps the result, so no edge degrades to a zero weight that would
// break the next contraction.
func (b *Balancer) foldWorkload(iter int, workload []float64) {
	bal := b.cfg.Balancing
	col := b.graph.GetMetricColumn(b.workloadCol)
	next := make([]float64, len(col))

	switch bal.OptimizingWith.Method {
	case "explicit_euler":
		corr := bal.OptimizingWith.Correction
		for e := range next {
			next[e] = col[e] + corr*(workload[e]-col[e])
		}
	default: // averaging
		for e := range next {
			next[e] = (float64(iter)*col[e] + workload[e]) / float64(iter+1)
		}
	}

	for e := range next {
		next[e] = util.Max(next[e], bal.MinNewMetric)
	}
	b.graph.SetMetricColumn(b.workloadCol, next)
}

func (b *Balancer) writeRoundDiagnostics(iter int, traceShards [][]VehicleTrace) error {
	bal := b.cfg.Balancing
	dir := filepath.Join(bal.ResultsDir, fmt.Sprintf("%d", iter))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "creating round dir %s", dir)
	}

	edgesInfo := bal.Monitoring.EdgesInfo
	if edgesInfo.File == "" {
		edgesInfo.File = "edges-info.csv"
	}
	if len(edgesInfo.IDs) == 0 {
		edgesInfo.IDs = []string{bal.OptimizingWith.MetricID}
	}
	if err := WriteEdgesInfo(b.graph, filepath.Join(dir, edgesInfo.File), edgesInfo); err != nil {
		return err
	}

	if bal.Monitoring.VehicleTraces != "" {
		traces := make([]VehicleTrace, 0)
		for _, shard := range traceShards {
			traces = append(traces, shard...)
		}
		if err := WriteVehicleTraces(filepath.Join(dir, bal.Monitoring.VehicleTraces), traces); err != nil {
			return err
		}
	}
	return nil
}

// rebuildContraction ships the re-weighted graph to the external constructor
// and swaps in the contracted result. Shortcut costs depend on the metric
// values, so incremental updates are not an option.
func (b *Balancer) rebuildContraction(iter int) error {
	dir := filepath.Join(b.cfg.Balancing.ResultsDir, fmt.Sprintf("%d", iter))
	inputFmi := filepath.Join(dir, "graph.fmi")
	outputFmi := filepath.Join(dir, "graph.ch.fmi")

	registry := b.graph.GetRegistry()
	if err := da.WriteFmi(b.graph, inputFmi, plainSchema(registry), true); err != nil {
		return err
	}
	if err := b.multiCh.Contract(inputFmi, outputFmi); err != nil {
		return err
	}

	// the contracted file carries every column, so no generators re-run; a
	// fresh registry layout re-normalizes on load
	contracted, err := da.ReadFmi(outputFmi, contractedSchema(registry),
		registry.CloneLayout(), nil, b.logger)
	if err != nil {
		return err
	}
	b.graph = contracted
	if b.snap != nil {
		b.buildSnapIndex()
	}
	b.logger.Sugar().Infof("reloaded contracted graph: %d nodes, %d edges",
		contracted.NumberOfNodes(), contracted.NumberOfEdges())
	return nil
}

// plainSchema writes the original edges with all metric columns, the shape
// the external constructor consumes.
func plainSchema(registry *metrics.Registry) da.FmiSchema {
	schema := da.FmiSchema{
		NodeColumns: []da.NodeColumnKind{da.NODE_COL_ID, da.NODE_COL_LAT, da.NODE_COL_LON},
		EdgeColumns: []da.EdgeColumn{{Kind: da.EDGE_COL_SRC}, {Kind: da.EDGE_COL_DST}},
	}
	for c := 0; c < registry.Dim(); c++ {
		schema.EdgeColumns = append(schema.EdgeColumns,
			da.EdgeColumn{Kind: da.EDGE_COL_METRIC, MetricID: registry.Id(c)})
	}
	return schema
}

// contractedSchema is plainSchema plus node levels and shortcut children.
func contractedSchema(registry *metrics.Registry) da.FmiSchema {
	schema := plainSchema(registry)
	schema.NodeColumns = append(schema.NodeColumns, da.NODE_COL_LEVEL)
	schema.EdgeColumns = append(schema.EdgeColumns,
		da.EdgeColumn{Kind: da.EDGE_COL_CH_CHILD1}, da.EdgeColumn{Kind: da.EDGE_COL_CH_CHILD2})
	return schema
}
