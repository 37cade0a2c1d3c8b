package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/eval"
	"github.com/sgrechanik-h/zeroelim/expr"
)

func countCalls(e expr.Expr) int {
	n := 0
	expr.Walk(e, func(c expr.Expr) bool {
		if _, ok := c.(*expr.Call); ok {
			n++
		}
		return true
	})
	return n
}

func TestInlineTailCall(t *testing.T) {
	p := NewProgram()
	i := expr.NewIterVar("i", 0, 12)
	j := expr.NewIterVar("j", 0, 12)
	A := p.Compute("A", []*expr.IterVar{i, j},
		expr.NewAdd(i.Var, expr.NewMul(j.Var, j.Var)))

	k := expr.NewIterVar("k", 0, 5)
	l := expr.NewIterVar("l", 0, 6)
	B := p.Compute("B", []*expr.IterVar{k, l},
		A.At(expr.NewAdd(k.Var, l.Var), expr.NewAdd(k.Var, expr.Imm(1))))

	inlined, changed := InlineTailCall(p, B)
	require.True(t, changed)
	require.NoError(t, p.Validate())
	require.Zero(t, countCalls(inlined.Body[0]))

	nk, nl := inlined.Axes[0].Var, inlined.Axes[1].Var
	want := expr.NewAdd(expr.NewAdd(nk, nl),
		expr.NewMul(expr.NewAdd(nk, expr.Imm(1)), expr.NewAdd(nk, expr.Imm(1))))
	require.NoError(t, eval.CheckEquivalent(want, inlined.Body[0],
		expr.AxisRanges(inlined.Axes), nil))

	// A placeholder call cannot be collapsed.
	P := p.Placeholder("P", expr.Int32, 5, 6)
	m := expr.NewIterVar("m", 0, 5)
	n := expr.NewIterVar("n", 0, 6)
	C := p.Compute("C", []*expr.IterVar{m, n}, P.At(m.Var, n.Var))
	_, changed = InlineTailCall(p, C)
	require.False(t, changed)
}

func TestInlineTensors(t *testing.T) {
	p := NewProgram()
	ia := expr.NewIterVar("i", 0, 6)
	ja := expr.NewIterVar("j", 0, 6)
	A := p.Compute("A", []*expr.IterVar{ia, ja}, expr.NewAdd(ia.Var, ja.Var))

	ib := expr.NewIterVar("i", 0, 6)
	jb := expr.NewIterVar("j", 0, 6)
	B := p.Compute("B", []*expr.IterVar{ib, jb}, expr.NewMul(ib.Var, jb.Var))

	ic := expr.NewIterVar("i", 0, 6)
	jc := expr.NewIterVar("j", 0, 6)
	C := p.Compute("C", []*expr.IterVar{ic, jc},
		expr.NewAdd(A.At(ic.Var, jc.Var), B.At(ic.Var, jc.Var)))

	id := expr.NewIterVar("i", 0, 6)
	jd := expr.NewIterVar("j", 0, 6)
	k := expr.NewIterVar("k", 0, 5)
	D := p.Compute("D", []*expr.IterVar{id, jd},
		expr.NewReduce(expr.SumCombiner(expr.Int32),
			[]expr.Expr{A.At(id.Var, k.Var)}, []*expr.IterVar{k}, nil, 0))

	i := expr.NewVar("i")
	j := expr.NewVar("j")
	ranges := expr.Ranges{i: expr.ConstRange(0, 6), j: expr.ConstRange(0, 6)}
	e := expr.NewAdd(
		expr.NewAdd(A.At(expr.Imm(2), j), C.At(i, expr.Imm(2))),
		D.At(i, j))

	pe := eval.NewProgramEvaluator(p.TensorDef)

	// Reductions stay put unless asked for; everything else dissolves.
	flat := InlineTensors(p, e, nil, false)
	require.Equal(t, 1, countCalls(flat))
	require.NoError(t, eval.CheckEquivalent(e, flat, ranges, pe.Resolve))

	// Only A is a target, and only direct calls to it are rewritten;
	// the copy inside C's body is C's business.
	onlyA := InlineTensors(p, e, []expr.TensorID{A.ID}, false)
	require.Equal(t, 2, countCalls(onlyA))
	require.NoError(t, eval.CheckEquivalent(e, onlyA, ranges, pe.Resolve))

	all := InlineTensors(p, e, nil, true)
	require.Zero(t, countCalls(all))
	require.NoError(t, eval.CheckEquivalent(e, all, ranges, pe.Resolve))
}

func TestInlineTensorsClonesReductionAxes(t *testing.T) {
	p := NewProgram()
	id := expr.NewIterVar("i", 0, 4)
	k := expr.NewIterVar("k", 0, 3)
	D := p.Compute("D", []*expr.IterVar{id},
		expr.NewReduce(expr.SumCombiner(expr.Int32),
			[]expr.Expr{expr.NewMul(id.Var, k.Var)}, []*expr.IterVar{k}, nil, 0))

	i := expr.NewVar("i")
	e := expr.NewAdd(D.At(i), D.At(i))
	out := InlineTensors(p, e, nil, true)

	var axes []*expr.Var
	expr.Walk(out, func(c expr.Expr) bool {
		if red, ok := c.(*expr.Reduce); ok {
			for _, ax := range red.Axes {
				axes = append(axes, ax.Var)
			}
		}
		return true
	})
	require.Len(t, axes, 2)
	require.NotSame(t, axes[0], axes[1], "inlined copies must not share axes")
	require.NoError(t, eval.CheckEquivalent(e, out,
		expr.Ranges{i: expr.ConstRange(0, 4)},
		eval.NewProgramEvaluator(p.TensorDef).Resolve))
}
