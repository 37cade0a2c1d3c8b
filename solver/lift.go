package solver

import (
	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
)

// ImplicationNotContainingVars factors a boolean condition into a pair
// (free, dependent) such that cond is equivalent to free && dependent
// and free does not mention any of the given variables. Conditions
// that cannot be split cleanly end up on the dependent side.
func ImplicationNotContainingVars(cond expr.Expr, vars map[*expr.Var]bool) (expr.Expr, expr.Expr) {
	switch n := cond.(type) {
	case *expr.And:
		freeA, restA := ImplicationNotContainingVars(n.A, vars)
		freeB, restB := ImplicationNotContainingVars(n.B, vars)
		return expr.NewAnd(freeA, freeB), expr.NewAnd(restA, restB)
	case *expr.Or:
		freeA, restA := ImplicationNotContainingVars(n.A, vars)
		freeB, restB := ImplicationNotContainingVars(n.B, vars)
		// (freeA && restA) || (freeB && restB) distributes into the
		// conjunction below, keeping the free part variable-free.
		return expr.NewOr(freeA, freeB),
			expr.NewAnd(expr.NewAnd(
				expr.NewOr(freeA, restB),
				expr.NewOr(freeB, restA)),
				expr.NewOr(restA, restB))
	}
	if !usesAny(cond, vars) {
		return cond, expr.BImm(true)
	}
	return expr.BImm(true), cond
}

func usesAny(e expr.Expr, vars map[*expr.Var]bool) bool {
	for _, v := range expr.FreeVars(e) {
		if vars[v] {
			return true
		}
	}
	return false
}

// LiftConditionsThroughReduction splits a reduction condition into an
// outer part, free of the reduction variables, and an inner remainder.
// The condition is first run through the inequality solver over the
// reduction variables followed by the outer ones, so that bounds on
// reduction variables get rewritten in terms of outer variables and
// become liftable.
func LiftConditionsThroughReduction(cond expr.Expr, redAxes, outerAxes []*expr.IterVar) (expr.Expr, expr.Expr) {
	log := logger.Logger()
	log.Trace().Stringer("cond", cond).Msg("lifting conditions through reduction")

	fa := arith.FactorOutAtomicFormulas(cond)

	allVars := make([]*expr.Var, 0, len(redAxes)+len(outerAxes))
	for _, iv := range redAxes {
		allVars = append(allVars, iv.Var)
	}
	for _, iv := range outerAxes {
		allVars = append(allVars, iv.Var)
	}
	vranges := expr.AxisRanges(redAxes).Extend(expr.AxisRanges(outerAxes))

	atomics := SolveSystemOfInequalities(fa.Atomic, allVars, vranges).AsConditions()
	rewritten := expr.NewAnd(expr.AndAll(atomics...), fa.Rest)

	vset := make(map[*expr.Var]bool, len(redAxes))
	for _, iv := range redAxes {
		vset[iv.Var] = true
	}
	outer, inner := ImplicationNotContainingVars(rewritten, vset)
	log.Trace().Stringer("outer", outer).Stringer("inner", inner).
		Msg("lifted conditions")
	return outer, inner
}
