package routing

import (
	da "github.com/lintas-routing/balancegraph/pkg/datastructure"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

type Algorithm uint8

const (
	ALGO_DIJKSTRA Algorithm = iota
	ALGO_BIDIRECTIONAL_DIJKSTRA
	ALGO_CH_DIJKSTRA
	ALGO_EXPLORATOR
)

func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "Dijkstra":
		return ALGO_DIJKSTRA, nil
	case "BidirectionalDijkstra":
		return ALGO_BIDIRECTIONAL_DIJKSTRA, nil
	case "CHDijkstra":
		return ALGO_CH_DIJKSTRA, nil
	case "Explorator":
		return ALGO_EXPLORATOR, nil
	default:
		return ALGO_DIJKSTRA, util.WrapErrorf(nil, util.ErrBadConfig, "unknown routing algorithm %q", s)
	}
}

func (a Algorithm) String() string {
	switch a {
	case ALGO_DIJKSTRA:
		return "Dijkstra"
	case ALGO_BIDIRECTIONAL_DIJKSTRA:
		return "BidirectionalDijkstra"
	case ALGO_CH_DIJKSTRA:
		return "CHDijkstra"
	default:
		return "Explorator"
	}
}

// Router answers one origin-destination query with one or more paths. The
// single-path algorithms return a one-element slice; the explorator returns
// every admissible alternative it found.
type Router interface {
	Route(s, t da.Index) ([]*Path, error)
}
