package metrics

import (
	"github.com/lintas-routing/balancegraph/pkg/util"
)

type GeneratorKind uint8

const (
	GEN_HAVERSINE GeneratorKind = iota
	GEN_CALC
	GEN_COPY
	GEN_CUSTOM
)

// Generator describes one generated metric column. Haversine derives
// great-circle kilometers from the edge endpoints' coordinates, Calc divides
// two existing columns, Copy duplicates a column, Custom fills a constant.
type Generator struct {
	kind         GeneratorKind
	result       string
	unit         Unit
	a, b         string
	from         string
	defaultValue float64
}

func NewHaversineGenerator(result string) Generator {
	return Generator{kind: GEN_HAVERSINE, result: result, unit: KILOMETERS}
}

func NewCalcGenerator(result string, unit Unit, a, b string) Generator {
	return Generator{kind: GEN_CALC, result: result, unit: unit, a: a, b: b}
}

func NewCopyGenerator(from, to string, unit Unit) Generator {
	return Generator{kind: GEN_COPY, result: to, unit: unit, from: from}
}

func NewCustomGenerator(id string, unit Unit, defaultValue float64) Generator {
	return Generator{kind: GEN_CUSTOM, result: id, unit: unit, defaultValue: defaultValue}
}

func (g Generator) Kind() GeneratorKind {
	return g.kind
}

func (g Generator) Result() string {
	return g.result
}

func (g Generator) Unit() Unit {
	return g.unit
}

func (g Generator) Operands() (string, string) {
	return g.a, g.b
}

func (g Generator) From() string {
	return g.from
}

func (g Generator) DefaultValue() float64 {
	return g.defaultValue
}

// Inputs lists the metric columns the generator reads. Haversine reads node
// coordinates, not columns, and Custom reads nothing.
func (g Generator) Inputs() []string {
	switch g.kind {
	case GEN_CALC:
		return []string{g.a, g.b}
	case GEN_COPY:
		return []string{g.from}
	default:
		return nil
	}
}

// TopoSort orders generators so every generator runs after the generators it
// reads from. Non-generated registry columns count as satisfied inputs. A
// cycle among generated metrics is a config error; an input that is neither a
// registry column nor generated is a missing input.
func TopoSort(gens []Generator, reg *Registry) ([]Generator, error) {
	producer := make(map[string]int, len(gens))
	for i, g := range gens {
		if _, ok := producer[g.Result()]; ok {
			return nil, util.WrapErrorf(nil, util.ErrBadConfig, "metric id %q generated twice", g.Result())
		}
		producer[g.Result()] = i
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make([]uint8, len(gens))
	order := make([]Generator, 0, len(gens))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case inStack:
			return util.WrapErrorf(nil, util.ErrBadConfig,
				"cycle in metric generation involving %q", gens[i].Result())
		}
		state[i] = inStack
		for _, input := range gens[i].Inputs() {
			if j, ok := producer[input]; ok {
				if err := visit(j); err != nil {
					return err
				}
				continue
			}
			if !reg.Has(input) {
				return util.WrapErrorf(nil, util.ErrMissingInput,
					"generator for %q reads undeclared metric %q", gens[i].Result(), input)
			}
		}
		state[i] = done
		order = append(order, gens[i])
		return nil
	}

	for i := range gens {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
