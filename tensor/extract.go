package tensor

import (
	"fmt"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
	"github.com/sgrechanik-h/zeroelim/solver"
)

func iterVarsFromVars(vars []*expr.Var, vranges expr.Ranges) []*expr.IterVar {
	axes := make([]*expr.IterVar, len(vars))
	for i, v := range vars {
		r, ok := vranges[v]
		if !ok {
			panic(fmt.Sprintf("tensor: no range for variable %s", v.Name))
		}
		axes[i] = &expr.IterVar{Var: v, Range: r}
	}
	return axes
}

// callValueIndex picks the output slot a call to a tensor built from e
// should reference. Multi-slot reductions become one output per slot,
// everything else a single output.
func callValueIndex(e expr.Expr) int {
	if red, ok := e.(*expr.Reduce); ok && len(red.Source) > 1 {
		return red.ValueIndex
	}
	return 0
}

// ExtractAsTensorMaybe hoists value, known to matter only where cond
// holds, into a tensor over the simplified sub-domain of outerVars cut
// down by cond. It returns a call into the new tensor when the
// sub-domain is strictly smaller than the full outerVars grid, and the
// unchanged value otherwise. The caller keeps the select(cond, ..., 0)
// wrapper; only the guarded value moves.
func ExtractAsTensorMaybe(p *Program, value, cond expr.Expr, outerVars []*expr.Var, vranges expr.Ranges) expr.Expr {
	log := logger.Logger()
	res := solver.SimplifyDomain(domain.New(outerVars, cond, vranges), false)

	an := arith.NewAnalyzer(res.New.Ranges)
	newValue := an.Simplify(expr.Substitute(value, res.OldToNew))
	newValue = an.Simplify(an.RemoveRedundantInequalities(newValue, res.New.Conditions))

	var used []*expr.Var
	uses := expr.FreeVarsSet(newValue)
	for _, v := range res.New.Vars {
		if uses[v] {
			used = append(used, v)
		}
	}

	// A value using no variables is cheaper inlined than materialized.
	if len(used) == 0 {
		return newValue
	}
	// Already a tensor element, nothing to gain by another indirection.
	if _, ok := newValue.(*expr.Call); ok {
		return value
	}

	oldVolume := expr.Expr(expr.TypedImm(expr.Int64, 1))
	for _, v := range outerVars {
		r, ok := vranges[v]
		if !ok {
			panic(fmt.Sprintf("tensor: no range for variable %s", v.Name))
		}
		oldVolume = expr.NewMul(oldVolume, r.Extent)
	}
	newVolume := expr.Expr(expr.TypedImm(expr.Int64, 1))
	for _, v := range used {
		newVolume = expr.NewMul(newVolume, res.New.Ranges[v].Extent)
	}
	if arith.Prove(expr.NewLE(oldVolume, newVolume), vranges) {
		return value
	}

	t := FromExpr(p, newValue, iterVarsFromVars(used, res.New.Ranges), "extracted_tensor")
	log.Debug().Str("tensor", t.Name).Int("id", int(t.ID)).
		Stringer("oldVolume", oldVolume).Stringer("newVolume", newVolume).
		Msg("extracted guarded value")

	args := make([]expr.Expr, len(used))
	for i, v := range used {
		args[i] = res.NewToOld[v]
	}
	return t.Out(callValueIndex(newValue), args...)
}

// ExtractReductions moves every reduction in e, however deep, into its
// own tensor over the outer variables it actually uses, replacing the
// reduction with a call. Inner reductions are extracted before the
// reductions containing them, so the resulting bodies never nest
// reductions inside other expressions.
func ExtractReductions(p *Program, e expr.Expr, outerVars []*expr.Var, vranges expr.Ranges) expr.Expr {
	red, ok := e.(*expr.Reduce)
	if !ok {
		return expr.MapChildren(e, func(c expr.Expr) expr.Expr {
			return ExtractReductions(p, c, outerVars, vranges)
		})
	}

	innerVars := append(expr.AxisVars(red.Axes), outerVars...)
	innerRanges := vranges.Extend(expr.AxisRanges(red.Axes))
	src := make([]expr.Expr, len(red.Source))
	for i, s := range red.Source {
		src[i] = ExtractReductions(p, s, innerVars, innerRanges)
	}
	newRed := expr.NewReduce(red.Combiner, src, red.Axes, red.Condition, red.ValueIndex)

	free := expr.FreeVarsSet(newRed)
	var vars []*expr.Var
	for _, v := range outerVars {
		if free[v] {
			vars = append(vars, v)
		}
	}

	t := FromExpr(p, newRed, iterVarsFromVars(vars, vranges), "extracted_reduction")
	args := make([]expr.Expr, len(vars))
	for i, v := range vars {
		args[i] = v
	}
	return t.Out(callValueIndex(newRed), args...)
}

// ExtractNonTopReductions is ExtractReductions except that a reduction
// at the root of e stays in place; only the reductions nested in its
// sources and condition move out.
func ExtractNonTopReductions(p *Program, e expr.Expr, outerVars []*expr.Var, vranges expr.Ranges) expr.Expr {
	red, ok := e.(*expr.Reduce)
	if !ok {
		return ExtractReductions(p, e, outerVars, vranges)
	}
	innerVars := append(expr.AxisVars(red.Axes), outerVars...)
	innerRanges := vranges.Extend(expr.AxisRanges(red.Axes))
	src := make([]expr.Expr, len(red.Source))
	for i, s := range red.Source {
		src[i] = ExtractReductions(p, s, innerVars, innerRanges)
	}
	cond := ExtractReductions(p, red.Condition, innerVars, innerRanges)
	return expr.NewReduce(red.Combiner, src, red.Axes, cond, red.ValueIndex)
}
