package solver

import (
	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/domain"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
)

// DeskewDomain rewrites every domain variable as a zero-based one.
// The conditions are first run through Fourier-Motzkin elimination,
// which yields triangular bounds: the bounds of a variable only
// mention variables that come later. Walking the variables in reverse
// then lets each variable pick the tightest available (lower, upper)
// bound pair, already expressed over the new variables; the variable
// is replaced by newVar + lower with newVar ranging over [0, diff+1).
// Variables pinned by an equality, or whose extent proves to be one,
// disappear entirely. The residual conditions are re-checked against
// the new ranges and only the unproved ones survive.
func DeskewDomain(d *domain.Domain) *domain.Transform {
	log := logger.Logger()
	log.Trace().Stringer("domain", d).Msg("deskewing domain")

	// Eliminate the domain variables first, then the outer ones; the
	// outer ranges carry over untouched.
	resRanges := make(expr.Ranges)
	vars := make([]*expr.Var, 0, len(d.Ranges))
	vars = append(vars, d.Vars...)
	vset := d.VarSet()
	for _, v := range sortedRangeVars(d.Ranges) {
		if !vset[v] {
			vars = append(vars, v)
			resRanges[v] = d.Ranges[v]
		}
	}

	solved := SolveSystemOfInequalities(d.Conditions, vars, d.Ranges)

	resOldToNew := make(domain.Subst)
	resNewToOld := make(domain.Subst)
	var resVars []*expr.Var

	vranges := d.Ranges.Clone()
	intsets := rangeIntervals(arith.NewAnalyzer(nil), d.Ranges)

	// Reverse order starts with the variable whose bounds mention no
	// other domain variable, so every bound can be substituted as soon
	// as it is read.
	for i := len(d.Vars) - 1; i >= 0; i-- {
		v := d.Vars[i]
		an := arith.NewAnalyzer(vranges)
		r, hasRange := vranges[v]
		if !hasRange {
			panic("solver: domain variable " + v.Name + " has no range")
		}

		bnd := solved.Bounds[v].Substitute(resOldToNew)
		// AsConditions below must see the substituted bounds.
		solved.Bounds[v] = bnd

		if bnd.Coef == 1 && len(bnd.Equal) > 0 {
			// Pinned by an equation; the first is the structurally
			// simplest.
			resOldToNew[v] = bnd.Equal[0]
			log.Trace().Str("variable", v.Name).Stringer("value", bnd.Equal[0]).Msg("variable pinned")
			continue
		}

		lowers := append(append([]expr.Expr{}, bnd.Equal...), bnd.Lower...)
		uppers := append(append([]expr.Expr{}, bnd.Equal...), bnd.Upper...)
		expr.SortExprs(lowers)
		expr.SortExprs(uppers)

		// The bound lists constrain Coef*v while the chosen lower
		// bound and extent are for v itself, hence the divisions.
		bestLower := r.Min
		bestDiffOver := an.Simplify(expr.NewSub(r.Extent, expr.One(v.Type)))
		coefImm := expr.TypedImm(v.Type, bnd.Coef)

		for _, low := range lowers {
			for _, upp := range uppers {
				diff1 := an.Simplify(expr.NewFloorDiv(expr.NewSub(upp, low), coefImm))
				diffOver1 := intervalMax(an, diff1, intsets)

				lowDivided := an.Simplify(expr.NewFloorDiv(
					expr.NewSub(expr.NewAdd(low, coefImm), expr.One(v.Type)), coefImm))

				// A second estimate from rounding the endpoints
				// separately; sometimes tighter, sometimes not.
				diff2 := an.Simplify(expr.NewSub(expr.NewFloorDiv(upp, coefImm), lowDivided))
				diffOver2 := intervalMax(an, diff2, intsets)

				if diffOver1 != nil && diffOver2 != nil &&
					arith.Prove(expr.NewLT(expr.NewSub(diffOver2, diffOver1), expr.Zero(v.Type)), nil) {
					diffOver1 = diffOver2
				}
				if diffOver1 == nil {
					continue
				}
				// Earlier pairs win ties; the lists are sorted so they
				// tend to be simpler.
				if an.Prove(expr.NewLT(expr.NewSub(diffOver1, bestDiffOver), expr.Zero(v.Type))) {
					bestLower = lowDivided
					bestDiffOver = diffOver1
				}
			}
		}

		suffix := ""
		if !expr.Equal(bestLower, r.Min) {
			suffix = ".shifted"
		}
		diff := an.Simplify(bestDiffOver)

		if expr.IsConstInt(diff, 0) {
			// Single point, no variable needed.
			resOldToNew[v] = bestLower
			log.Trace().Str("variable", v.Name).Stringer("value", bestLower).Msg("variable pinned")
			continue
		}

		nv := expr.NewTypedVar(v.Name+suffix, v.Type)
		resOldToNew[v] = expr.NewAdd(nv, bestLower)
		// bestLower is over new variables; the reverse map needs it
		// over the old ones.
		resNewToOld[nv] = an.Simplify(expr.NewSub(v, expr.Substitute(bestLower, resNewToOld)))

		intsets[nv] = arith.Interval{Min: expr.Zero(v.Type), Max: diff}
		nr := expr.Range{Min: expr.Zero(v.Type), Extent: an.Simplify(expr.NewAdd(diff, expr.One(v.Type)))}
		resVars = append(resVars, nv)
		resRanges[nv] = nr
		vranges[nv] = nr
	}

	var resConditions []expr.Expr
	finalAn := arith.NewAnalyzer(vranges)
	for _, cond := range solved.AsConditions() {
		newCond := finalAn.Simplify(expr.Substitute(cond, resOldToNew))
		if !constTrue(newCond) {
			resConditions = append(resConditions, newCond)
		}
	}

	// Match the original variable order.
	for i, j := 0, len(resVars)-1; i < j; i, j = i+1, j-1 {
		resVars[i], resVars[j] = resVars[j], resVars[i]
	}

	newDomain := domain.FromConditions(resVars, resConditions, resRanges)
	return &domain.Transform{Old: d, New: newDomain, NewToOld: resNewToOld, OldToNew: resOldToNew}
}

// intervalMax over-approximates e from above under the interval map,
// returning nil when no upper bound is known.
func intervalMax(an *arith.Analyzer, e expr.Expr, ivs arith.IntervalMap) expr.Expr {
	iv := an.EvalInterval(e, ivs)
	if iv.Max == nil {
		return nil
	}
	return an.Simplify(iv.Max)
}
