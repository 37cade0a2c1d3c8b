package solver

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/eval"
	"github.com/sgrechanik-h/zeroelim/expr"
)

func checkSolveInequalities(t *testing.T, rnd *rand.Rand, nVars, formulas int, coefLo, coefHi, lo, hi int64) {
	t.Helper()
	vs := systemVars(nVars)
	fs := randomLinearSystem(rnd, vs, formulas, coefLo, coefHi, 0.2)
	vranges := make(expr.Ranges, nVars)
	for _, v := range vs {
		vranges[v] = expr.ConstRange(lo, hi-lo+1)
	}

	res := SolveSystemOfInequalities(fs, vs, vranges)
	before := expr.AndAll(fs...)
	after := expr.AndAll(res.AsConditions()...)
	require.NoError(t, eval.CheckEquivalent(before, after, vranges, nil),
		"system %v solved to %v", before, after)
}

func TestSolveSystemOfInequalitiesRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 3; i++ {
		checkSolveInequalities(t, rnd, 1, 1, -5, 5, -20, 20)
		checkSolveInequalities(t, rnd, 1, 2, -5, 5, -20, 20)
		checkSolveInequalities(t, rnd, 2, 1, -5, 5, -20, 20)
		checkSolveInequalities(t, rnd, 2, 2, -5, 5, -20, 20)
		checkSolveInequalities(t, rnd, 2, 3, -5, 5, -20, 20)
	}

	// Larger systems blow up the derived coefficients, so keep the
	// initial ones small.
	for i := 0; i < 5; i++ {
		checkSolveInequalities(t, rnd, 3, 3, -2, 2, -10, 10)
		checkSolveInequalities(t, rnd, 3, 4, -2, 2, -10, 10)
		checkSolveInequalities(t, rnd, 4, 3, -1, 1, -10, 10)
		checkSolveInequalities(t, rnd, 6, 2, -1, 1, 0, 4)
		checkSolveInequalities(t, rnd, 6, 3, 0, 1, 0, 4)
	}
}

func TestSolveSystemOfInequalitiesTriangle(t *testing.T) {
	k := expr.NewVar("k")
	l := expr.NewVar("l")
	n := expr.NewVar("n")
	vranges := expr.Ranges{
		k: expr.ConstRange(0, 10),
		l: expr.ConstRange(0, 10),
		n: expr.ConstRange(0, 10),
	}
	fs := []expr.Expr{expr.NewLE(k, l), expr.NewLE(l, n)}

	res := SolveSystemOfInequalities(fs, []*expr.Var{k, l, n}, vranges)
	require.Equal(t, []*expr.Var{k, l, n}, res.Variables)

	// k is bounded by l from above with unit coefficient; the bound
	// list for each variable only mentions later variables.
	kb := res.Bounds[k]
	require.EqualValues(t, 1, kb.Coef)
	require.NotEmpty(t, kb.Upper)
	for _, u := range kb.Upper {
		for _, v := range expr.FreeVars(u) {
			require.NotEqual(t, k, v)
		}
	}

	before := expr.AndAll(fs...)
	after := expr.AndAll(res.AsConditions()...)
	require.NoError(t, eval.CheckEquivalent(before, after, vranges, nil))
}

func TestSolveSystemOfInequalitiesInfeasible(t *testing.T) {
	k := expr.NewVar("k")
	vranges := expr.Ranges{k: expr.ConstRange(0, 10)}
	fs := []expr.Expr{
		expr.NewLE(k, expr.Imm(3)),
		expr.NewGE(k, expr.Imm(5)),
	}

	res := SolveSystemOfInequalities(fs, []*expr.Var{k}, vranges)
	after := expr.AndAll(res.AsConditions()...)
	require.NoError(t, eval.CheckEquivalent(expr.AndAll(fs...), after, vranges, nil))
}

func TestVarBoundsSubstitute(t *testing.T) {
	l := expr.NewVar("l")
	m := expr.NewVar("m")

	vb := VarBounds{
		Coef:  2,
		Lower: []expr.Expr{l},
		Upper: []expr.Expr{expr.NewAdd(l, expr.Imm(4))},
	}
	sub := vb.Substitute(map[*expr.Var]expr.Expr{l: m})
	require.EqualValues(t, 2, sub.Coef)
	require.True(t, expr.Equal(sub.Lower[0], m))
	require.True(t, expr.Equal(sub.Upper[0], expr.NewAdd(m, expr.Imm(4))))
	// the receiver is untouched
	require.True(t, expr.Equal(vb.Lower[0], l))
}
