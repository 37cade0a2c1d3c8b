package eval

import (
	"fmt"
	"math/rand"

	"github.com/sgrechanik-h/zeroelim/expr"
)

// Grid is a dense n-dimensional array of values. Each axis covers
// [min, min+extent); tensors extracted from skewed domains keep their
// non-zero minimums, so indexing is by absolute coordinate.
type Grid struct {
	mins    []int64
	extents []int64
	data    []Value
}

// NewGrid allocates a grid with zero minimums.
func NewGrid(extents []int64) *Grid {
	return NewOffsetGrid(make([]int64, len(extents)), extents)
}

// NewOffsetGrid allocates a grid whose axis d covers
// [mins[d], mins[d]+extents[d]).
func NewOffsetGrid(mins, extents []int64) *Grid {
	if len(mins) != len(extents) {
		panic("eval: mins and extents length mismatch")
	}
	n := int64(1)
	for _, e := range extents {
		n *= e
	}
	return &Grid{
		mins:    append([]int64(nil), mins...),
		extents: append([]int64(nil), extents...),
		data:    make([]Value, n),
	}
}

// Extents returns the axis extents.
func (g *Grid) Extents() []int64 { return g.extents }

func (g *Grid) flat(idx []int64) (int64, error) {
	if len(idx) != len(g.extents) {
		return 0, fmt.Errorf("eval: got %d indices for a %d-dimensional grid",
			len(idx), len(g.extents))
	}
	var f int64
	for d, x := range idx {
		rel := x - g.mins[d]
		if rel < 0 || rel >= g.extents[d] {
			return 0, fmt.Errorf("eval: index %d out of range [%d, %d) on axis %d",
				x, g.mins[d], g.mins[d]+g.extents[d], d)
		}
		f = f*g.extents[d] + rel
	}
	return f, nil
}

// At returns the value at the given absolute coordinates.
func (g *Grid) At(idx []int64) (Value, error) {
	f, err := g.flat(idx)
	if err != nil {
		return Value{}, err
	}
	return g.data[f], nil
}

// Set stores a value at the given absolute coordinates.
func (g *Grid) Set(idx []int64, v Value) error {
	f, err := g.flat(idx)
	if err != nil {
		return err
	}
	g.data[f] = v
	return nil
}

// RandomGrid fills a zero-based grid with small integer-valued numbers
// of the given type. Integer-valued floats keep sums exact no matter
// how a rewrite reassociates them, so optimized programs can be
// compared to originals with plain equality.
func RandomGrid(t expr.DType, extents []int64, rnd *rand.Rand) *Grid {
	g := NewGrid(extents)
	for i := range g.data {
		n := int64(rnd.Intn(11) - 5)
		switch {
		case t == expr.Bool:
			g.data[i] = BoolValue(n > 0)
		case t.IsFloat():
			g.data[i] = FloatValue(t, float64(n))
		default:
			g.data[i] = IntValue(t, n)
		}
	}
	return g
}

// CompareGrids reports the first point where the two grids differ.
func CompareGrids(a, b *Grid) error {
	if len(a.extents) != len(b.extents) {
		return fmt.Errorf("eval: grids have different ranks %d and %d",
			len(a.extents), len(b.extents))
	}
	for d := range a.extents {
		if a.extents[d] != b.extents[d] || a.mins[d] != b.mins[d] {
			return fmt.Errorf("eval: grids differ on axis %d: [%d, %d) vs [%d, %d)",
				d, a.mins[d], a.mins[d]+a.extents[d], b.mins[d], b.mins[d]+b.extents[d])
		}
	}
	idx := make([]int64, len(a.extents))
	for f := range a.data {
		if !a.data[f].Equal(b.data[f]) {
			rem := int64(f)
			for d := len(a.extents) - 1; d >= 0; d-- {
				idx[d] = a.mins[d] + rem%a.extents[d]
				rem /= a.extents[d]
			}
			return fmt.Errorf("eval: grids differ at %v: %s vs %s",
				idx, a.data[f], b.data[f])
		}
	}
	return nil
}

// TensorDefFunc describes a tensor: its iteration axes and one body
// expression per output. A nil values slice marks a placeholder whose
// data must be supplied with SetInput.
type TensorDefFunc func(id expr.TensorID) (axes []*expr.IterVar, values []expr.Expr, ok bool)

// ProgramEvaluator computes tensors of a program into grids, memoizing
// per output. Bodies reference other tensors through Call nodes, which
// resolve back into the evaluator.
type ProgramEvaluator struct {
	def    TensorDefFunc
	inputs map[expr.TensorID]*Grid
	grids  map[tensorSlot]*Grid
}

type tensorSlot struct {
	id  expr.TensorID
	idx int
}

func NewProgramEvaluator(def TensorDefFunc) *ProgramEvaluator {
	return &ProgramEvaluator{
		def:    def,
		inputs: make(map[expr.TensorID]*Grid),
		grids:  make(map[tensorSlot]*Grid),
	}
}

// SetInput supplies the data for a placeholder tensor.
func (p *ProgramEvaluator) SetInput(id expr.TensorID, g *Grid) {
	p.inputs[id] = g
}

// Resolve evaluates one element of a tensor. It has the shape of a
// Resolver so it can be passed straight to Eval.
func (p *ProgramEvaluator) Resolve(id expr.TensorID, valueIndex int, args []int64) (Value, error) {
	g, err := p.Grid(id, valueIndex)
	if err != nil {
		return Value{}, err
	}
	return g.At(args)
}

// Grid computes output valueIndex of the given tensor.
func (p *ProgramEvaluator) Grid(id expr.TensorID, valueIndex int) (*Grid, error) {
	slot := tensorSlot{id: id, idx: valueIndex}
	if g, ok := p.grids[slot]; ok {
		return g, nil
	}
	axes, values, ok := p.def(id)
	if !ok {
		return nil, fmt.Errorf("eval: unknown tensor id %d", id)
	}
	if values == nil {
		g, ok := p.inputs[id]
		if !ok {
			return nil, fmt.Errorf("eval: no input data for placeholder tensor %d", id)
		}
		p.grids[slot] = g
		return g, nil
	}
	if valueIndex < 0 || valueIndex >= len(values) {
		return nil, fmt.Errorf("eval: tensor %d has no output %d", id, valueIndex)
	}

	mins := make([]int64, len(axes))
	extents := make([]int64, len(axes))
	for d, iv := range axes {
		m, err := EvalInt(iv.Range.Min, nil, p.Resolve)
		if err != nil {
			return nil, err
		}
		e, err := EvalInt(iv.Range.Extent, nil, p.Resolve)
		if err != nil {
			return nil, err
		}
		mins[d], extents[d] = m, e
	}
	g := NewOffsetGrid(mins, extents)

	env := make(Env, len(axes))
	idx := make([]int64, len(axes))
	var walk func(d int) error
	walk = func(d int) error {
		if d == len(axes) {
			v, err := Eval(values[valueIndex], env, p.Resolve)
			if err != nil {
				return err
			}
			return g.Set(idx, v)
		}
		for x := mins[d]; x < mins[d]+extents[d]; x++ {
			env[axes[d].Var] = IntValue(axes[d].Var.Type, x)
			idx[d] = x
			if err := walk(d + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	p.grids[slot] = g
	return g, nil
}
