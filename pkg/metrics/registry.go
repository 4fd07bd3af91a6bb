package metrics

import (
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// unit tag of a metric column. parsed from the yaml config.
type Unit uint8

const (
	KILOMETERS Unit = iota
	HOURS
	KILOMETERS_PER_HOUR
	LANE_COUNT
	LATITUDE
	LONGITUDE
	F64
)

func ParseUnit(s string) (Unit, error) {
	switch s {
	case "Kilometers":
		return KILOMETERS, nil
	case "Hours":
		return HOURS, nil
	case "KilometersPerHour":
		return KILOMETERS_PER_HOUR, nil
	case "LaneCount":
		return LANE_COUNT, nil
	case "Latitude":
		return LATITUDE, nil
	case "Longitude":
		return LONGITUDE, nil
	case "F64":
		return F64, nil
	default:
		return F64, util.WrapErrorf(nil, util.ErrBadConfig, "unknown metric unit %q", s)
	}
}

func (u Unit) String() string {
	switch u {
	case KILOMETERS:
		return "Kilometers"
	case HOURS:
		return "Hours"
	case KILOMETERS_PER_HOUR:
		return "KilometersPerHour"
	case LANE_COUNT:
		return "LaneCount"
	case LATITUDE:
		return "Latitude"
	case LONGITUDE:
		return "Longitude"
	default:
		return "F64"
	}
}

// Registry maps metric ids to column indices of the graph's column-major
// metric storage and remembers each column's unit and normalization state.
type Registry struct {
	ids        []string
	units      []Unit
	idx        map[string]int
	normalized []bool
	means      []float64
}

func NewRegistry() *Registry {
	return &Registry{
		idx: make(map[string]int),
	}
}

// Register adds a metric column. Duplicate ids are rejected.
func (r *Registry) Register(id string, unit Unit, normalize bool) (int, error) {
	if _, ok := r.idx[id]; ok {
		return 0, util.WrapErrorf(nil, util.ErrBadConfig, "duplicate metric id %q", id)
	}
	col := len(r.ids)
	r.idx[id] = col
	r.ids = append(r.ids, id)
	r.units = append(r.units, unit)
	r.normalized = append(r.normalized, normalize)
	r.means = append(r.means, 1.0)
	return col, nil
}

// TryIdx resolves a metric id to its column index.
func (r *Registry) TryIdx(id string) (int, error) {
	col, ok := r.idx[id]
	if !ok {
		return 0, util.WrapErrorf(nil, util.ErrMissingInput, "metric id %q is not declared", id)
	}
	return col, nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.idx[id]
	return ok
}

func (r *Registry) Dim() int {
	return len(r.ids)
}

func (r *Registry) Id(col int) string {
	return r.ids[col]
}

func (r *Registry) Unit(col int) Unit {
	return r.units[col]
}

func (r *Registry) WillNormalize(col int) bool {
	return r.normalized[col]
}

// Mean returns the arithmetic mean the column was divided by, 1.0 when the
// column was never normalized. Kept for lossless denormalization at export.
func (r *Registry) Mean(col int) float64 {
	return r.means[col]
}

func (r *Registry) SetMean(col int, mean float64) {
	r.means[col] = mean
}

// CloneLayout copies the column layout (ids, units, normalization flags) into
// a fresh registry with reset means, for rebuilding a graph from scratch.
func (r *Registry) CloneLayout() *Registry {
	clone := NewRegistry()
	for col := 0; col < r.Dim(); col++ {
		clone.Register(r.ids[col], r.units[col], r.normalized[col])
	}
	return clone
}
