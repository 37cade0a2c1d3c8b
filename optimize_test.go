package zeroelim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgrechanik-h/zeroelim/eval"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/tensor"
)

// checkOptimized verifies that opt is a valid rewrite of orig: the
// program stays well-formed, the estimated cost did not grow, every
// output agrees pointwise after inlining all intermediates, and a
// second run changes nothing.
func checkOptimized(t *testing.T, p *tensor.Program, orig, opt *tensor.Tensor,
	params expr.Ranges, pe *eval.ProgramEvaluator, opts ...Option) {
	t.Helper()
	require.NoError(t, p.Validate())
	require.LessOrEqual(t, tensor.EstimateCost(p, opt), tensor.EstimateCost(p, orig))

	vmap := make(map[*expr.Var]expr.Expr, len(orig.Axes))
	for d := range orig.Axes {
		vmap[opt.Axes[d].Var] = orig.Axes[d].Var
	}
	vranges := params.Extend(expr.AxisRanges(orig.Axes))
	for vi := range orig.Body {
		a := tensor.InlineTensors(p, orig.Body[vi], nil, true)
		b := expr.Substitute(tensor.InlineTensors(p, opt.Body[vi], nil, true), vmap)
		require.NoError(t, eval.CheckEquivalent(a, b, vranges, pe.Resolve),
			"output %d of %s", vi, orig.Name)
	}

	again := OptimizeAndLiftNonzeronessConditions(p, opt, opts...)
	require.Same(t, opt, again, "second run must be a no-op")
}

func placeholderEvaluator(p *tensor.Program, inputs ...*tensor.Tensor) *eval.ProgramEvaluator {
	pe := eval.NewProgramEvaluator(p.TensorDef)
	rnd := rand.New(rand.NewSource(42))
	for _, in := range inputs {
		extents := make([]int64, len(in.Axes))
		for d, ax := range in.Axes {
			v, ok := expr.ImmValue(ax.Range.Extent)
			if !ok {
				panic("placeholder with symbolic extent")
			}
			extents[d] = v
		}
		pe.SetInput(in.ID, eval.RandomGrid(in.Type, extents, rnd))
	}
	return pe
}

func TestOptimizeSumOverDiagonal(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 10, 10)
	i := expr.NewIterVar("i", 0, 10)
	j := expr.NewIterVar("j", 0, 10)
	k := expr.NewIterVar("k", 0, 10)
	B := p.Compute("B", []*expr.IterVar{i, j},
		expr.NewReduce(expr.SumCombiner(expr.Float32),
			[]expr.Expr{expr.NewMul(
				expr.NewEQ(i.Var, j.Var),
				expr.NewAdd(A.At(i.Var, k.Var), A.At(k.Var, j.Var)))},
			[]*expr.IterVar{k}, nil, 0))

	opt := OptimizeAndLiftNonzeronessConditions(p, B)
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, nil, pe)

	// The diagonal condition must have moved out of the sum: the body
	// is a guarded call into a one-dimensional helper of extent 10.
	sel, ok := opt.Body[0].(*expr.Select)
	require.True(t, ok, "optimized body is %v", opt.Body[0])
	require.NoError(t, eval.CheckEquivalent(
		sel.Cond, expr.NewEQ(opt.Axes[0].Var, opt.Axes[1].Var),
		expr.AxisRanges(opt.Axes), nil))
	call, ok := sel.Then.(*expr.Call)
	require.True(t, ok, "guarded value is %v", sel.Then)
	helper := p.Tensor(call.Tensor)
	require.Len(t, helper.Axes, 1)
	require.True(t, expr.IsConstInt(helper.Axes[0].Range.Extent, 10),
		"helper extent is %v", helper.Axes[0].Range.Extent)
}

func TestOptimizeTriangularSum(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 10, 10)
	i := expr.NewIterVar("i", 0, 10)
	j := expr.NewIterVar("j", 0, 10)
	k := expr.NewIterVar("k", 0, 10)
	B := p.Compute("B", []*expr.IterVar{i},
		expr.NewReduce(expr.SumCombiner(expr.Float32),
			[]expr.Expr{expr.NewMul(expr.NewLT(i.Var, j.Var),
				expr.NewMul(expr.NewLT(j.Var, k.Var), A.At(j.Var, k.Var)))},
			[]*expr.IterVar{j, k}, nil, 0))

	opt := OptimizeAndLiftNonzeronessConditions(p, B)
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, nil, pe)
}

func TestOptimizeNonReduceBody(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 8, 8)
	i := expr.NewIterVar("i", 0, 8)
	j := expr.NewIterVar("j", 0, 8)
	B := p.Compute("B", []*expr.IterVar{i, j},
		expr.NewMul(expr.NewEQ(i.Var, j.Var), A.At(i.Var, j.Var)))

	opt := OptimizeAndLiftNonzeronessConditions(p, B)
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, nil, pe)

	sel, ok := opt.Body[0].(*expr.Select)
	require.True(t, ok, "optimized body is %v", opt.Body[0])
	_, ok = sel.Then.(*expr.Call)
	require.True(t, ok, "guarded value is %v", sel.Then)
}

func TestOptimizeProductDerivative(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 6, 6)
	i := expr.NewIterVar("i", 0, 6)
	k := expr.NewIterVar("k", 0, 6)
	// The condition pins k to i, so the whole reduction collapses even
	// though the combiner is not a sum.
	B := p.Compute("B", []*expr.IterVar{i},
		expr.NewReduce(prodDerivativeCombiner(t),
			[]expr.Expr{A.At(i.Var, k.Var), A.At(k.Var, i.Var)},
			[]*expr.IterVar{k}, expr.NewEQ(k.Var, i.Var), 1))

	opt := OptimizeAndLiftNonzeronessConditions(p, B)
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, nil, pe)
}

func TestOptimizeWithParamRanges(t *testing.T) {
	m := expr.NewVar("m")
	params := expr.Ranges{m: expr.ConstRange(-5, 4)}

	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 5)
	i := expr.NewIterVar("i", 0, 5)
	k := expr.NewIterVar("k", 0, 5)
	B := p.Compute("B", []*expr.IterVar{i},
		expr.NewReduce(sumOrProdCombiner(t, m),
			[]expr.Expr{expr.NewMul(expr.NewEQ(k.Var, i.Var), A.At(k.Var))},
			[]*expr.IterVar{k}, nil, 0))

	// With m known to be negative the combiner is a sum, so the
	// equality condition shrinks the reduction domain to a point.
	opt := OptimizeAndLiftNonzeronessConditions(p, B, WithParamRanges(params))
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, params, pe, WithParamRanges(params))
}

func TestOptimizeParamShiftedEquality(t *testing.T) {
	m := expr.NewVar("m")
	params := expr.Ranges{m: expr.ConstRange(0, 1)}

	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 12)
	i := expr.NewIterVar("i", 0, 12)
	k := expr.NewIterVar("k", 0, 12)
	B := p.Compute("B", []*expr.IterVar{i},
		expr.NewReduce(expr.SumCombiner(expr.Float32),
			[]expr.Expr{expr.NewMul(
				expr.NewEQ(k.Var, expr.NewAdd(i.Var, m)), A.At(k.Var))},
			[]*expr.IterVar{k}, nil, 0))

	opt := OptimizeAndLiftNonzeronessConditions(p, B, WithParamRanges(params))
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, params, pe, WithParamRanges(params))
}

func TestOptimizeWithoutDivModElimination(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 10)
	i := expr.NewIterVar("i", 0, 10)
	k := expr.NewIterVar("k", 0, 10)
	B := p.Compute("B", []*expr.IterVar{i},
		expr.NewReduce(expr.SumCombiner(expr.Float32),
			[]expr.Expr{expr.NewMul(
				expr.NewAnd(
					expr.NewEQ(expr.NewMod(k.Var, expr.Imm(2)), expr.Imm(0)),
					expr.NewEQ(k.Var, i.Var)),
				A.At(k.Var))},
			[]*expr.IterVar{k}, nil, 0))

	opt := OptimizeAndLiftNonzeronessConditions(p, B, WithoutDivModElimination())
	pe := placeholderEvaluator(p, A)
	checkOptimized(t, p, B, opt, nil, pe, WithoutDivModElimination())
}

func TestOptimizeRejectsCostlierRewrite(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 10, 10)
	i := expr.NewIterVar("i", 0, 10)
	j := expr.NewIterVar("j", 0, 10)
	k := expr.NewIterVar("k", 0, 10)
	B := p.Compute("B", []*expr.IterVar{i, j},
		expr.NewReduce(expr.SumCombiner(expr.Float32),
			[]expr.Expr{expr.NewMul(expr.NewEQ(i.Var, j.Var), A.At(i.Var, k.Var))},
			[]*expr.IterVar{k}, nil, 0))

	// An estimator that always reports growth makes the pass keep the
	// original tensor untouched.
	calls := 0
	opt := OptimizeAndLiftNonzeronessConditions(p, B, WithCostEstimator(
		func(*tensor.Program, *tensor.Tensor) int64 {
			calls++
			return int64(calls)
		}))
	require.Same(t, B, opt)
	require.NoError(t, p.Validate())
}

func TestOptimizePlaceholderIsNoop(t *testing.T) {
	p := tensor.NewProgram()
	A := p.Placeholder("A", expr.Float32, 4)
	require.Same(t, A, OptimizeAndLiftNonzeronessConditions(p, A))
}
