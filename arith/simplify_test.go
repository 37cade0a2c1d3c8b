package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/expr"
)

func box5(vs ...*expr.Var) expr.Ranges {
	out := make(expr.Ranges, len(vs))
	for _, v := range vs {
		out[v] = expr.ConstRange(0, 5)
	}
	return out
}

func TestSimplifyLinear(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	cases := []struct {
		in, want expr.Expr
	}{
		{expr.NewSub(expr.NewAdd(i, j), expr.NewAdd(j, i)), expr.Imm(0)},
		{expr.NewAdd(expr.NewMul(i, expr.Imm(2)), expr.NewSub(expr.Imm(3), expr.NewAdd(i, expr.Imm(3)))), i},
		{expr.NewMul(expr.NewAdd(i, expr.Imm(1)), expr.NewSub(i, expr.Imm(1))),
			expr.NewSub(expr.NewMul(i, i), expr.Imm(1))},
		{expr.NewMul(expr.NewAdd(i, j), expr.NewSub(i, j)),
			expr.NewSub(expr.NewMul(i, i), expr.NewMul(j, j))},
		{expr.NewAdd(expr.NewMul(expr.Imm(0), j), i), i},
		{expr.NewSub(expr.NewMul(i, expr.Imm(3)), expr.NewMul(expr.Imm(3), i)), expr.Imm(0)},
	}
	for _, c := range cases {
		got := a.Simplify(c.in)
		assert.True(t, expr.Equal(got, c.want), "simplify(%s) = %s, want %s", c.in, got, c.want)
	}
}

func TestSimplifyProductOrder(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	ij := a.Simplify(expr.NewMul(i, j))
	ji := a.Simplify(expr.NewMul(j, i))
	require.True(t, expr.Equal(ij, ji), "%s vs %s", ij, ji)
}

func TestSimplifyComparisons(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	cases := []struct {
		in   expr.Expr
		want string
	}{
		{expr.NewLT(i, j), "(i <= (j - 1))"},
		{expr.NewGE(j, i), "(i <= j)"},
		{expr.NewGT(i, expr.Imm(0)), "(1 <= i)"},
		{expr.NewLE(expr.NewAdd(i, expr.Imm(2)), j), "(i <= (j - 2))"},
		{expr.NewEQ(expr.NewMul(i, expr.Imm(2)), expr.NewMul(j, expr.Imm(4))),
			"((i - (j * 2)) == 0)"},
		{expr.NewEQ(j, i), "(i == j)"},
		{expr.NewNE(expr.NewMul(i, expr.Imm(2)), expr.Imm(3)), "true"},
		{expr.NewEQ(expr.NewMul(i, expr.Imm(2)), expr.Imm(3)), "false"},
		{expr.NewLE(expr.NewMul(i, expr.Imm(2)), expr.Imm(3)), "(i <= 1)"},
	}
	for _, c := range cases {
		got := a.Simplify(c.in)
		assert.Equal(t, c.want, got.String(), "simplify(%s)", c.in)
	}
}

func TestSimplifyEqualityOrientation(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	// Both spellings of the same constraint canonicalize to one tree.
	e1 := a.Simplify(expr.NewEQ(i, j))
	e2 := a.Simplify(expr.NewEQ(j, i))
	e3 := a.Simplify(expr.NewEQ(expr.NewSub(i, j), expr.Imm(0)))
	require.True(t, expr.Equal(e1, e2))
	require.True(t, expr.Equal(e1, e3))
}

func TestSimplifyWithRanges(t *testing.T) {
	i := expr.NewVar("i")
	a := NewAnalyzer(box5(i))

	cases := []struct {
		in   expr.Expr
		want string
	}{
		{expr.NewLT(i, expr.Imm(5)), "true"},
		{expr.NewGE(i, expr.Imm(0)), "true"},
		{expr.NewLT(i, expr.Imm(3)), "(i <= 2)"},
		{expr.NewEQ(i, expr.Imm(7)), "false"},
		{expr.NewNE(expr.NewAdd(i, expr.Imm(1)), expr.Imm(0)), "true"},
		{expr.NewMin(i, expr.Imm(10)), "i"},
		{expr.NewMax(i, expr.Imm(-2)), "i"},
		{expr.NewMin(i, expr.Imm(3)), "min(i, 3)"},
	}
	for _, c := range cases {
		got := a.Simplify(c.in)
		assert.Equal(t, c.want, got.String(), "simplify(%s)", c.in)
	}
}

func TestSimplifySinglePointRange(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	vr := expr.Ranges{i: expr.ConstRange(3, 1)}
	a := NewAnalyzer(vr)

	assert.True(t, expr.Equal(a.Simplify(i), expr.Imm(3)))
	got := a.Simplify(expr.NewAdd(i, j))
	assert.Equal(t, "(j + 3)", got.String())
}

func TestSimplifyDivMod(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	cases := []struct {
		in   expr.Expr
		want string
	}{
		{expr.NewFloorDiv(expr.NewAdd(expr.NewMul(i, expr.Imm(4)), j), expr.Imm(2)),
			"((i * 2) + floordiv(j, 2))"},
		{expr.NewFloorMod(expr.NewAdd(expr.NewMul(i, expr.Imm(4)), j), expr.Imm(2)),
			"floormod(j, 2)"},
		{expr.NewFloorDiv(expr.NewAdd(expr.NewMul(i, expr.Imm(2)), expr.Imm(3)), expr.Imm(2)),
			"(i + 1)"},
		{expr.NewFloorDiv(i, expr.Imm(1)), "i"},
		{expr.NewFloorMod(i, expr.Imm(1)), "0"},
		{expr.NewFloorDiv(expr.Imm(-7), expr.Imm(2)), "-4"},
		{expr.NewFloorMod(expr.Imm(-7), expr.Imm(2)), "1"},
		{expr.NewMod(expr.Imm(-7), expr.Imm(2)), "-1"},
		{expr.NewMod(i, expr.Imm(-3)), "(i % 3)"},
		{expr.NewFloorDiv(i, expr.Imm(-2)), "floordiv((i * -1), 2)"},
	}
	for _, c := range cases {
		got := a.Simplify(c.in)
		assert.Equal(t, c.want, got.String(), "simplify(%s)", c.in)
	}
}

func TestSimplifyTruncToFloorWhenNonnegative(t *testing.T) {
	i := expr.NewVar("i")
	a := NewAnalyzer(box5(i))

	got := a.Simplify(expr.NewDiv(i, expr.Imm(2)))
	_, isFloor := got.(*expr.FloorDiv)
	require.True(t, isFloor, "got %s", got)

	gotMod := a.Simplify(expr.NewMod(i, expr.Imm(2)))
	_, isFloorMod := gotMod.(*expr.FloorMod)
	require.True(t, isFloorMod, "got %s", gotMod)
}

func TestSimplifyConnectives(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	x := expr.NewLE(i, j)
	y := expr.NewLE(j, i)

	got := a.Simplify(expr.NewAnd(expr.NewAnd(x, y), x))
	and, ok := got.(*expr.And)
	require.True(t, ok, "got %s", got)
	assert.True(t, expr.Equal(a.Simplify(x), and.A) || expr.Equal(a.Simplify(x), and.B))

	assert.Equal(t, "false",
		a.Simplify(expr.NewAnd(expr.NewEQ(i, j), expr.NewNE(i, j))).String())
	assert.Equal(t, "true",
		a.Simplify(expr.NewOr(expr.BImm(true), expr.NewLT(i, j))).String())
	assert.True(t, expr.Equal(a.Simplify(expr.NewOr(expr.BImm(false), x)), a.Simplify(x)))

	// Multiplication of booleans is a conjunction: both factors spell
	// the same constraint here, so a single comparison remains.
	m := a.Simplify(expr.NewMul(expr.NewEQ(i, j), expr.NewEQ(j, i)))
	assert.Equal(t, "(i == j)", m.String())
}

func TestSimplifyNotAndSelect(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	a := NewAnalyzer(nil)

	assert.Equal(t, "(j <= i)", a.Simplify(expr.NewNot(expr.NewLT(i, j))).String())
	assert.Equal(t, "(i != j)", a.Simplify(expr.NewNot(expr.NewEQ(i, j))).String())

	sel := expr.NewSelect(expr.BImm(true), i, j)
	assert.True(t, expr.Equal(a.Simplify(sel), i))

	same := expr.NewSelect(expr.NewLT(i, j), i, i)
	assert.True(t, expr.Equal(a.Simplify(same), i))

	boolSel := expr.NewSelect(expr.NewLT(i, j), expr.BImm(true), expr.BImm(false))
	assert.Equal(t, "(i <= (j - 1))", a.Simplify(boolSel).String())
}

func TestSimplifyIdempotent(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	k := expr.NewVar("k")
	a := NewAnalyzer(box5(i, j, k))

	exprs := []expr.Expr{
		expr.NewLT(expr.NewAdd(i, j), expr.NewMul(k, expr.Imm(2))),
		expr.NewEQ(expr.NewMul(i, expr.Imm(6)), expr.NewAdd(j, k)),
		expr.NewFloorDiv(expr.NewAdd(expr.NewMul(i, expr.Imm(3)), j), expr.Imm(3)),
		expr.NewAnd(expr.NewLE(i, j), expr.NewOr(expr.NewLT(j, k), expr.NewEQ(i, k))),
		expr.NewSelect(expr.NewLE(i, j), expr.NewAdd(i, expr.Imm(1)), expr.NewSub(j, k)),
		expr.NewMin(expr.NewAdd(i, j), expr.NewSub(k, expr.Imm(1))),
	}
	for _, e := range exprs {
		once := a.Simplify(e)
		twice := a.Simplify(once)
		assert.True(t, expr.Equal(once, twice), "simplify(%s): %s vs %s", e, once, twice)
	}
}

func TestSimplifyReduceParts(t *testing.T) {
	i := expr.NewVar("i")
	sum := expr.SumCombiner(expr.Int32)

	ax := expr.NewIterVarRange("k", expr.Range{
		Min:    expr.Imm(0),
		Extent: expr.NewAdd(expr.Imm(2), expr.Imm(3)),
	})
	k := ax.Var
	red := expr.NewReduce(sum,
		[]expr.Expr{expr.NewAdd(expr.NewSub(k, k), i)},
		[]*expr.IterVar{ax},
		expr.NewLE(expr.NewAdd(k, expr.Imm(0)), i),
		0)

	a := NewAnalyzer(box5(i))
	got := a.Simplify(red).(*expr.Reduce)
	assert.Equal(t, "5", got.Axes[0].Range.Extent.String())
	assert.True(t, expr.Equal(got.Source[0], i))
	assert.Equal(t, "(k <= i)", got.Condition.String())
	assert.Same(t, ax.Var, got.Axes[0].Var)
}
