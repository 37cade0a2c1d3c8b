package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/expr"
)

func TestNormalizeComparisons(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	cases := []struct {
		in   expr.Expr
		want string
	}{
		{expr.NewLT(i, j), "(((i - j) + 1) <= 0)"},
		{expr.NewGE(i, j), "((j - i) <= 0)"},
		{expr.NewEQ(i, j), "((i - j) == 0)"},
		{expr.NewGT(i, expr.Imm(2)), "((3 - i) <= 0)"},
		{expr.NewAnd(expr.NewLE(i, j), expr.NewNE(j, expr.Imm(0))),
			"(((i - j) <= 0) && (j != 0))"},
	}
	for _, c := range cases {
		got := a.NormalizeComparisons(c.in)
		assert.Equal(t, c.want, got.String(), "normalize(%s)", c.in)
	}
}

func TestFactorOutAtomicFormulas(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	k := expr.NewVar("k")

	le := expr.NewLE(i, j)
	lt := expr.NewLT(j, k)
	eq := expr.NewEQ(i, k)

	// Plain conjunction: everything is atomic.
	f := FactorOutAtomicFormulas(expr.NewAnd(le, expr.NewAnd(lt, eq)))
	assert.Len(t, f.Atomic, 3)
	assert.True(t, isConstTrue(f.Rest))

	// A disjunction contributes only its shared atoms.
	or := expr.NewOr(expr.NewAnd(le, lt), expr.NewAnd(le, eq))
	f = FactorOutAtomicFormulas(or)
	require.Len(t, f.Atomic, 1)
	assert.True(t, expr.Equal(f.Atomic[0], le))
	rest, ok := f.Rest.(*expr.Or)
	require.True(t, ok, "rest = %s", f.Rest)
	assert.True(t, expr.Equal(rest.A, lt))
	assert.True(t, expr.Equal(rest.B, eq))

	// Select is rewritten through And/Or before factoring.
	sel := expr.NewSelect(le, lt, eq)
	f = FactorOutAtomicFormulas(sel)
	assert.Empty(t, f.Atomic)
	_, ok = f.Rest.(*expr.Or)
	assert.True(t, ok)

	// Bool multiplication behaves like And.
	f = FactorOutAtomicFormulas(expr.NewMul(le, lt))
	assert.Len(t, f.Atomic, 2)

	// Not over And gets pushed down to the atoms.
	f = FactorOutAtomicFormulas(expr.NewNot(expr.NewOr(le, lt)))
	assert.Len(t, f.Atomic, 2)
	for _, atom := range f.Atomic {
		_, isNot := atom.(*expr.Not)
		assert.True(t, isNot, "atom %s", atom)
	}

	// Duplicated atoms collapse.
	f = FactorOutAtomicFormulas(expr.NewAnd(le, le))
	assert.Len(t, f.Atomic, 1)

	// Round trip through ToExpr keeps the meaning; atoms come back in
	// the structural order.
	assert.Equal(t, "((j < k) && (i <= j))",
		FactorOutAtomicFormulas(expr.NewAnd(le, lt)).ToExpr().String())
}

func TestLinearize(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	n := expr.NewVar("n")
	a := NewAnalyzer(nil)

	coefs, rest, ok := a.Linearize(
		expr.NewSub(expr.NewAdd(expr.NewMul(i, expr.Imm(2)), j), expr.NewAdd(n, expr.Imm(7))),
		[]*expr.Var{i, j})
	require.True(t, ok)
	assert.Equal(t, []int64{2, 1}, coefs)
	assert.Equal(t, "(n * -1) - 7", trimParens(rest.String()))

	// A tracked variable inside a product of variables is not linear.
	_, _, ok = a.Linearize(expr.NewMul(i, j), []*expr.Var{i})
	assert.False(t, ok)

	// Products with untracked variables land in the rest part.
	coefs, rest, ok = a.Linearize(expr.NewAdd(expr.NewMul(j, n), i), []*expr.Var{i})
	require.True(t, ok)
	assert.Equal(t, []int64{1}, coefs)
	assert.Equal(t, "j * n", trimParens(rest.String()))

	// Zero coefficients for absent variables.
	coefs, rest, ok = a.Linearize(expr.Imm(42), []*expr.Var{i, j})
	require.True(t, ok)
	assert.Equal(t, []int64{0, 0}, coefs)
	v, isConst := expr.ImmValue(rest)
	require.True(t, isConst)
	assert.Equal(t, int64(42), v)
}

func trimParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = s[1 : len(s)-1]
	}
	return s
}

func TestRemoveRedundantInequalities(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	known := []expr.Expr{expr.NewLE(i, j)}

	// A known comparison inside a Select condition collapses to true,
	// which then folds the Select.
	sel := expr.NewSelect(expr.NewLE(i, j), i, j)
	got := a.RemoveRedundantInequalities(sel, known)
	assert.True(t, expr.Equal(got, i), "got %s", got)

	// The then-branch learns the Select condition.
	nested := expr.NewSelect(expr.NewLT(i, j),
		expr.NewSelect(expr.NewLT(i, j), i, j),
		j)
	got = a.RemoveRedundantInequalities(nested, nil)
	outer, ok := got.(*expr.Select)
	require.True(t, ok)
	assert.True(t, expr.Equal(outer.Then, i), "then = %s", outer.Then)

	// Unrelated comparisons survive.
	keep := expr.NewLE(j, i)
	got = a.RemoveRedundantInequalities(keep, known)
	assert.Equal(t, "(j <= i)", got.String())
}

func TestRemoveRedundantInequalitiesReduce(t *testing.T) {
	i := expr.NewVar("i")
	sum := expr.SumCombiner(expr.Int32)
	ax := expr.NewIterVar("k", 0, 10)
	k := ax.Var

	// The axis range makes 0 <= k known inside the reduction, and the
	// condition k <= i becomes known in the source.
	src := expr.NewSelect(expr.NewLE(k, i), expr.NewSelect(expr.NewGE(k, expr.Imm(0)), k, i), i)
	red := expr.NewReduce(sum, []expr.Expr{src}, []*expr.IterVar{ax}, expr.NewLE(k, i), 0)

	a := NewAnalyzer(expr.Ranges{i: expr.ConstRange(0, 10)})
	got := a.RemoveRedundantInequalities(red, nil).(*expr.Reduce)
	assert.True(t, expr.Equal(got.Source[0], k), "source = %s", got.Source[0])
	assert.Equal(t, "(k <= i)", got.Condition.String())
}
