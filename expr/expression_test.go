package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifyInsertsCasts(t *testing.T) {
	i := NewVar("i")
	x := NewTypedVar("x", Float32)

	sum := NewAdd(i, x)
	assert.Equal(t, Float32, sum.DType())
	c, ok := sum.A.(*Cast)
	require.True(t, ok)
	assert.Equal(t, Float32, c.Type)

	cmp := NewLT(i, FImm(1.5))
	assert.Equal(t, Bool, cmp.DType())
	assert.Equal(t, Float32, cmp.A.DType())
}

func TestCastFoldsConstants(t *testing.T) {
	assert.Equal(t, &FloatImm{Type: Float32, Value: 3}, NewCast(Float32, Imm(3)))
	assert.Equal(t, &IntImm{Type: Int64, Value: 7}, NewCast(Int64, Imm(7)))
	assert.Equal(t, BImm(true), NewCast(Bool, Imm(2)))
	v := NewVar("v")
	assert.Same(t, Expr(v), NewCast(Int32, v))
}

func TestSubstituteRespectsBinders(t *testing.T) {
	i := NewVar("i")
	j := NewVar("j")
	k := NewIterVar("k", 0, 5)

	body := NewAdd(i, k.Var)
	red := NewReduce(SumCombiner(Int32), []Expr{body}, []*IterVar{k}, nil, 0)

	// substituting the bound variable must not touch the body
	got := Substitute(red, map[*Var]Expr{k.Var: j})
	require.Same(t, Expr(red), got)

	// substituting a free variable rebuilds the body
	got = Substitute(red, map[*Var]Expr{i: j})
	gotRed := got.(*Reduce)
	assert.True(t, Equal(NewAdd(j, k.Var), gotRed.Source[0]))
	assert.Same(t, k, gotRed.Axes[0])
}

func TestCloneReductionFreshAxes(t *testing.T) {
	i := NewVar("i")
	k := NewIterVar("k", 0, 5)
	red := NewReduce(SumCombiner(Int32), []Expr{NewMul(i, k.Var)}, []*IterVar{k}, NewLT(k.Var, i), 0)

	clone := CloneReduction(red).(*Reduce)
	require.Len(t, clone.Axes, 1)
	assert.NotSame(t, k.Var, clone.Axes[0].Var)
	assert.Equal(t, "k", clone.Axes[0].Var.Name)
	assert.True(t, ContainsVar(clone.Source[0], clone.Axes[0].Var))
	assert.False(t, ContainsVar(clone.Source[0], k.Var))
	assert.True(t, ContainsVar(clone.Condition, clone.Axes[0].Var))
}

func TestFreeVars(t *testing.T) {
	i := NewVar("i")
	j := NewVar("j")
	k := NewIterVar("k", 0, 5)

	red := NewReduce(SumCombiner(Int32), []Expr{NewAdd(i, k.Var)}, []*IterVar{k}, nil, 0)
	e := NewMul(red, j)

	free := FreeVars(e)
	assert.Equal(t, []*Var{i, j}, free)
	assert.True(t, ContainsVar(e, i))
	assert.False(t, ContainsVar(e, k.Var), "axis variable is bound")

	// the same name is not the same variable
	i2 := NewVar("i")
	assert.False(t, ContainsVar(e, i2))
}

func TestCompareDeterministicOrder(t *testing.T) {
	i := NewVar("i")
	j := NewVar("j")

	assert.Equal(t, 0, Compare(NewAdd(i, j), NewAdd(i, j)))
	assert.True(t, Compare(i, j) < 0, "earlier variable sorts first")
	assert.True(t, Compare(Imm(1), Imm(2)) < 0)
	assert.True(t, Compare(i, Imm(0)) < 0, "variables sort before constants")

	a := NewEQ(i, j)
	b := NewEQ(j, i)
	assert.NotEqual(t, 0, Compare(a, b), "operand order is significant before canonicalization")
	assert.True(t, Equal(a, NewEQ(i, j)))
}

func TestHashConsistentWithEqual(t *testing.T) {
	i := NewVar("i")
	j := NewVar("j")
	a := NewAdd(NewMul(i, Imm(2)), j)
	b := NewAdd(NewMul(i, Imm(2)), j)
	require.True(t, Equal(a, b))
	assert.Equal(t, Hash(a), Hash(b))
	assert.NotEqual(t, Hash(a), Hash(NewAdd(NewMul(i, Imm(3)), j)))
}

func TestAndAll(t *testing.T) {
	i := NewVar("i")
	assert.True(t, Equal(BImm(true), AndAll()))
	c := NewLT(i, Imm(3))
	assert.Same(t, Expr(c), AndAll(c))
	both := AndAll(c, NewLE(Imm(0), i))
	_, ok := both.(*And)
	assert.True(t, ok)
}

func TestCombinerValidation(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")
	_, err := NewCombiner("bad", []*Var{x}, []*Var{x}, []Expr{NewAdd(x, x)}, []Expr{Imm(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeated")

	_, err = NewCombiner("bad2", []*Var{x}, []*Var{y}, []Expr{NewAdd(x, y)}, []Expr{FImm(0)})
	require.Error(t, err)

	c, err := NewCombiner("sum2", []*Var{x}, []*Var{y}, []Expr{NewAdd(y, x)}, []Expr{Imm(0)})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Arity())
}
