package solver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/eval"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// checkDivModElimination substitutes the fresh variables back and
// compares with the original expression on every point.
func checkDivModElimination(t *testing.T, e expr.Expr, vranges expr.Ranges) DivModElimination {
	t.Helper()
	elim := EliminateDivMod(e, vranges)

	back := expr.Substitute(elim.Expr, elim.Substitution)
	require.NoError(t, eval.CheckEquivalent(e, back, vranges, nil), "eliminated %v", elim.Expr)

	for _, c := range elim.Conditions {
		holds := expr.Substitute(c, elim.Substitution)
		require.NoError(t, eval.CheckEquivalent(holds, expr.BImm(true), vranges, nil),
			"defining condition %v", c)
	}
	for _, v := range elim.NewVars {
		require.Contains(t, elim.Ranges, v, "new variable %s has no range", v.Name)
	}
	return elim
}

func TestEliminateDivModShared(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	vranges := expr.Ranges{
		i: expr.ConstRange(0, 10),
		j: expr.ConstRange(0, 10),
	}

	sum := expr.NewAdd(i, j)
	e := expr.NewAdd(
		expr.NewMul(expr.NewDiv(sum, expr.Imm(3)), expr.Imm(3)),
		expr.NewMod(sum, expr.Imm(3)))
	elim := checkDivModElimination(t, e, vranges)

	// The same dividend and divisor appear twice; one div/mod pair
	// serves both occurrences.
	require.Len(t, elim.NewVars, 2)
	require.Equal(t, "tdiv1", elim.NewVars[0].Name)
	require.Equal(t, "tmod1", elim.NewVars[1].Name)
}

func TestEliminateDivModFloor(t *testing.T) {
	i := expr.NewVar("i")
	vranges := expr.Ranges{i: expr.ConstRange(-7, 15)}

	e := expr.NewAdd(
		expr.NewFloorDiv(i, expr.Imm(4)),
		expr.NewFloorMod(i, expr.Imm(4)))
	elim := checkDivModElimination(t, e, vranges)
	require.Len(t, elim.NewVars, 2)
	require.Equal(t, "fdiv1", elim.NewVars[0].Name)
	require.Equal(t, "fmod1", elim.NewVars[1].Name)
}

func TestEliminateDivModNegativeDivisors(t *testing.T) {
	i := expr.NewVar("i")
	vranges := expr.Ranges{i: expr.ConstRange(-7, 15)}

	for _, e := range []expr.Expr{
		expr.NewDiv(i, expr.Imm(-3)),
		expr.NewMod(i, expr.Imm(-3)),
		expr.NewFloorDiv(i, expr.Imm(-3)),
		expr.NewFloorMod(i, expr.Imm(-3)),
	} {
		elim := checkDivModElimination(t, e, vranges)
		require.NotEmpty(t, elim.NewVars, "no elimination for %v", e)
	}
}

func TestEliminateDivModSignCondition(t *testing.T) {
	// A dividend that can be negative needs the sign disambiguation
	// condition for truncated mod.
	i := expr.NewVar("i")
	vranges := expr.Ranges{i: expr.ConstRange(-5, 11)}

	e := expr.NewMod(i, expr.Imm(3))
	elim := checkDivModElimination(t, e, vranges)

	var selects int
	for _, c := range elim.Conditions {
		if _, ok := c.(*expr.Select); ok {
			selects++
		}
	}
	require.Equal(t, 1, selects, "conditions %v", elim.Conditions)
}

func TestEliminateDivModKeepsSymbolicDivisors(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	vranges := expr.Ranges{
		i: expr.ConstRange(0, 10),
		j: expr.ConstRange(1, 5),
	}

	e := expr.NewDiv(i, j)
	elim := EliminateDivMod(e, vranges)
	require.Empty(t, elim.NewVars)
	require.True(t, expr.Equal(e, elim.Expr))
}

func TestEliminateDivModFromDomainConditions(t *testing.T) {
	i := expr.NewVar("i")
	j := expr.NewVar("j")
	vranges := expr.Ranges{
		i: expr.ConstRange(0, 10),
		j: expr.ConstRange(0, 10),
	}

	d := domain.New([]*expr.Var{i, j},
		expr.NewLE(expr.NewFloorDiv(expr.NewAdd(i, j), expr.Imm(3)), expr.Imm(2)),
		vranges)
	tr := EliminateDivModFromDomainConditions(d)
	require.NoError(t, eval.CheckTransformRanges(tr, nil))
	require.Greater(t, len(tr.New.Vars), len(d.Vars))
}

func TestEliminateDivModFromReductionCondition(t *testing.T) {
	k := expr.NewIterVar("k", 0, 12)
	cond := expr.NewEQ(expr.NewFloorMod(k.Var, expr.Imm(4)), expr.Imm(1))
	red := expr.NewReduce(expr.SumCombiner(expr.Int32),
		[]expr.Expr{k.Var}, []*expr.IterVar{k}, cond, 0)

	out := EliminateDivModFromReductionCondition(red, nil)
	newRed, ok := out.(*expr.Reduce)
	require.True(t, ok)
	require.Greater(t, len(newRed.Axes), len(red.Axes))
	require.NoError(t, eval.CheckEquivalent(red, out, nil, nil))

	// non-reductions pass through untouched
	plain := expr.NewAdd(k.Var, expr.Imm(1))
	require.Same(t, expr.Expr(plain), EliminateDivModFromReductionCondition(plain, nil))
}
