package arith

import "github.com/sgrechanik-h/zeroelim/expr"

// AxisInequalities renders the ranges of iteration variables as
// canonical inequalities, two per axis.
func (a *Analyzer) AxisInequalities(axes []*expr.IterVar) []expr.Expr {
	out := make([]expr.Expr, 0, 2*len(axes))
	for _, ax := range axes {
		out = append(out, a.Simplify(expr.NewGE(ax.Var, ax.Range.Min)))
		out = append(out, a.Simplify(expr.NewLT(ax.Var, expr.NewAdd(ax.Range.Min, ax.Range.Extent))))
	}
	return out
}

// RemoveRedundantInequalities replaces comparisons that match a known
// condition with true. Select conditions propagate into their then
// branch, reduction conditions and axis ranges into the reduction
// source. Matching is by canonical tree equality, so both the known
// conditions and the tree are simplified first.
func (a *Analyzer) RemoveRedundantInequalities(e expr.Expr, known []expr.Expr) expr.Expr {
	kn := make([]expr.Expr, 0, len(known))
	for _, k := range known {
		kn = append(kn, a.Simplify(k))
	}
	return a.removeRedundant(e, kn)
}

func (a *Analyzer) removeRedundant(e expr.Expr, known []expr.Expr) expr.Expr {
	switch n := e.(type) {
	case *expr.Select:
		cond := a.Simplify(a.removeRedundant(n.Cond, known))
		if b, ok := cond.(*expr.BoolImm); ok {
			if b.Value {
				return a.removeRedundant(n.Then, known)
			}
			return a.removeRedundant(n.Else, known)
		}
		thenKnown := known
		for _, atom := range FactorOutAtomicFormulas(cond).Atomic {
			thenKnown = append(thenKnown[:len(thenKnown):len(thenKnown)], atom)
		}
		return expr.NewSelect(cond,
			a.removeRedundant(n.Then, thenKnown),
			a.removeRedundant(n.Else, known))
	case *expr.Reduce:
		withAxes := append(known[:len(known):len(known)], a.AxisInequalities(n.Axes)...)
		cond := a.removeRedundant(n.Condition, withAxes)
		srcKnown := withAxes
		for _, atom := range FactorOutAtomicFormulas(cond).Atomic {
			srcKnown = append(srcKnown[:len(srcKnown):len(srcKnown)], atom)
		}
		src := make([]expr.Expr, len(n.Source))
		for i, s := range n.Source {
			src[i] = a.removeRedundant(s, srcKnown)
		}
		return expr.NewReduce(n.Combiner, src, n.Axes, cond, n.ValueIndex)
	case *expr.EQ, *expr.NE, *expr.LT, *expr.LE, *expr.GT, *expr.GE:
		return a.matchKnown(e, known)
	case *expr.And:
		l := a.removeRedundant(n.A, known)
		r := a.removeRedundant(n.B, known)
		if isConstTrue(l) {
			return r
		}
		if isConstTrue(r) {
			return l
		}
		if isConstFalse(l) || isConstFalse(r) {
			return expr.BImm(false)
		}
		return expr.NewAnd(l, r)
	}
	return expr.MapChildren(e, func(c expr.Expr) expr.Expr {
		return a.removeRedundant(c, known)
	})
}

func isConstFalse(e expr.Expr) bool {
	b, ok := e.(*expr.BoolImm)
	return ok && !b.Value
}

func (a *Analyzer) matchKnown(e expr.Expr, known []expr.Expr) expr.Expr {
	s := a.Simplify(e)
	for _, k := range known {
		if expr.Equal(s, k) {
			return expr.BImm(true)
		}
	}
	return s
}
