package solver

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/eval"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// randomLinearSystem builds random linear (in)equalities over vs with
// coefficients in [coefLo, coefHi]. eqShare is the fraction of
// equalities; the rest splits evenly between <=, <, >= and >.
func randomLinearSystem(rnd *rand.Rand, vs []*expr.Var, formulas int, coefLo, coefHi int64, eqShare float64) []expr.Expr {
	coef := func() int64 { return coefLo + rnd.Int63n(coefHi-coefLo+1) }
	side := func() expr.Expr {
		s := expr.Expr(expr.Imm(coef()))
		for _, v := range vs {
			s = expr.NewAdd(s, expr.NewMul(v, expr.Imm(coef())))
		}
		return s
	}
	out := make([]expr.Expr, formulas)
	for i := range out {
		a, b := side(), side()
		if rnd.Float64() < eqShare {
			out[i] = expr.NewEQ(a, b)
			continue
		}
		switch rnd.Intn(4) {
		case 0:
			out[i] = expr.NewLE(a, b)
		case 1:
			out[i] = expr.NewLT(a, b)
		case 2:
			out[i] = expr.NewGE(a, b)
		default:
			out[i] = expr.NewGT(a, b)
		}
	}
	return out
}

func systemVars(n int) []*expr.Var {
	vs := make([]*expr.Var, n)
	for i := range vs {
		vs[i] = expr.NewVar("x" + strconv.Itoa(i))
	}
	return vs
}

func checkSolveEquations(t *testing.T, rnd *rand.Rand, nVars, formulas int, coefLo, coefHi, lo, hi int64) {
	t.Helper()
	vs := systemVars(nVars)
	fs := randomLinearSystem(rnd, vs, formulas, coefLo, coefHi, 0.7)
	vranges := make(expr.Ranges, nVars)
	for _, v := range vs {
		vranges[v] = expr.ConstRange(lo, hi-lo+1)
	}

	d := domain.FromConditions(vs, fs, vranges)
	tr := SolveSystemOfEquations(d)
	require.NoError(t, eval.CheckTransformRanges(tr, nil), "system %v", fs)

	// Leaving trailing variables as parameters must work too.
	for _, k := range []int{1, 2} {
		if nVars <= k {
			continue
		}
		pd := domain.FromConditions(vs[:nVars-k], fs, vranges)
		ptr := SolveSystemOfEquations(pd)
		outer := make(expr.Ranges, k)
		for _, v := range vs[nVars-k:] {
			outer[v] = vranges[v]
		}
		require.NoError(t, eval.CheckTransformRanges(ptr, outer),
			"system %v with %d parameters", fs, k)
	}
}

func TestSolveSystemOfEquationsRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 3; i++ {
		checkSolveEquations(t, rnd, 1, 1, -5, 5, -20, 20)
		checkSolveEquations(t, rnd, 1, 2, -5, 5, -20, 20)
		checkSolveEquations(t, rnd, 2, 1, -5, 5, -20, 20)
		checkSolveEquations(t, rnd, 2, 2, -5, 5, -20, 20)
		checkSolveEquations(t, rnd, 2, 3, -5, 5, -20, 20)
	}
	for i := 0; i < 5; i++ {
		checkSolveEquations(t, rnd, 3, 3, -2, 2, -10, 10)
		checkSolveEquations(t, rnd, 3, 4, -2, 2, -10, 10)
		checkSolveEquations(t, rnd, 4, 3, -1, 1, -10, 10)
		checkSolveEquations(t, rnd, 6, 2, -1, 1, 0, 4)
		checkSolveEquations(t, rnd, 6, 3, 0, 1, 0, 4)
	}
}

func TestSolveSystemOfEquationsDiagonalizes(t *testing.T) {
	k := expr.NewVar("k")
	l := expr.NewVar("l")
	n := expr.NewVar("n")
	vranges := expr.Ranges{
		k: expr.ConstRange(0, 6),
		l: expr.ConstRange(0, 5),
		n: expr.ConstRange(0, 30),
	}

	// k + 6*l == n pins two of the three variables.
	cond := expr.NewEQ(expr.NewAdd(k, expr.NewMul(l, expr.Imm(6))), n)
	d := domain.FromConditions([]*expr.Var{k, l, n}, []expr.Expr{cond}, vranges)
	tr := SolveSystemOfEquations(d)
	require.NoError(t, eval.CheckTransformRanges(tr, nil))
	require.Len(t, tr.New.Vars, 3)

	// An infeasible system collapses to the empty domain.
	bad := domain.FromConditions([]*expr.Var{k},
		[]expr.Expr{expr.NewEQ(expr.NewMul(k, expr.Imm(2)), expr.Imm(7))},
		expr.Ranges{k: expr.ConstRange(0, 6)})
	btr := SolveSystemOfEquations(bad)
	require.Empty(t, btr.New.Vars)
	pts, err := eval.EnumeratePoints(btr.New, nil)
	require.NoError(t, err)
	require.Empty(t, pts)
}

func TestXgcd(t *testing.T) {
	cases := []struct{ a, b int64 }{
		{12, 18}, {18, 12}, {-12, 18}, {12, -18}, {7, 13}, {0, 5}, {5, 0}, {1, 1},
	}
	for _, c := range cases {
		g, x, y := xgcd(c.a, c.b)
		require.Equal(t, g, x*c.a+y*c.b, "xgcd(%d, %d)", c.a, c.b)
		if c.a != 0 {
			require.Zero(t, c.a%g)
		}
		if c.b != 0 {
			require.Zero(t, c.b%g)
		}
	}
}
