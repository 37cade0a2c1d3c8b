package solver

import (
	"sort"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
)

// VarBounds describes one variable after Fourier-Motzkin elimination:
// Coef*v is bounded below by every Lower expression, above by every
// Upper expression and equal to every Equal expression. The bound
// expressions only mention variables eliminated later, never the
// variable itself or earlier ones.
type VarBounds struct {
	Coef  int64
	Lower []expr.Expr
	Equal []expr.Expr
	Upper []expr.Expr
}

// Substitute maps every bound expression through m.
func (vb VarBounds) Substitute(m map[*expr.Var]expr.Expr) VarBounds {
	apply := func(es []expr.Expr) []expr.Expr {
		if len(es) == 0 {
			return nil
		}
		out := make([]expr.Expr, len(es))
		for i, e := range es {
			out[i] = expr.Substitute(e, m)
		}
		return out
	}
	return VarBounds{Coef: vb.Coef, Lower: apply(vb.Lower), Equal: apply(vb.Equal), Upper: apply(vb.Upper)}
}

// Bounds is the triangular system SolveSystemOfInequalities produces:
// per-variable bounds in elimination order plus the conditions that
// did not fit the linear form.
type Bounds struct {
	Variables []*expr.Var
	Bounds    map[*expr.Var]VarBounds
	Other     []expr.Expr
}

// AsConditions rebuilds a condition list equivalent to the solved
// system.
func (b *Bounds) AsConditions() []expr.Expr {
	var res []expr.Expr
	for _, v := range b.Variables {
		bnds, ok := b.Bounds[v]
		if !ok {
			panic("solver: no bounds recorded for variable " + v.Name)
		}
		lhs := expr.NewMul(expr.TypedImm(v.Type, bnds.Coef), v)
		for _, rhs := range bnds.Equal {
			res = append(res, expr.NewEQ(lhs, rhs))
		}
		for _, rhs := range bnds.Lower {
			res = append(res, expr.NewGE(lhs, rhs))
		}
		for _, rhs := range bnds.Upper {
			res = append(res, expr.NewLE(lhs, rhs))
		}
	}
	return append(res, b.Other...)
}

// ineqSet keeps normalized inequalities sorted by the structural
// order, which makes the dominance heuristic in add cheap: candidates
// for mutual implication tend to be neighbors.
type ineqSet struct {
	an *arith.Analyzer
	es []expr.Expr
}

func (s *ineqSet) search(e expr.Expr) int {
	return sort.Search(len(s.es), func(i int) bool { return expr.Compare(s.es[i], e) >= 0 })
}

func (s *ineqSet) insert(e expr.Expr) {
	i := s.search(e)
	if i < len(s.es) && expr.Equal(s.es[i], e) {
		return
	}
	s.es = append(s.es, nil)
	copy(s.es[i+1:], s.es[i:])
	s.es[i] = e
}

func (s *ineqSet) removeAt(i int) {
	s.es = append(s.es[:i], s.es[i+1:]...)
}

// add inserts an inequality unless it already follows from the ranges
// or from a neighboring inequality; a neighbor that follows from the
// new one is dropped instead.
func (s *ineqSet) add(ineq expr.Expr) {
	if s.an.Prove(ineq) {
		return
	}
	le, isLE := ineq.(*expr.LE)
	if !isLE {
		s.insert(ineq)
		return
	}
	zero := expr.Zero(le.A.DType())
	pos := s.search(ineq)
	if pos > 0 {
		if prev, ok := s.es[pos-1].(*expr.LE); ok {
			if s.an.Prove(expr.NewLE(expr.NewSub(le.A, prev.A), zero)) {
				return
			}
			if s.an.Prove(expr.NewLE(expr.NewSub(prev.A, le.A), zero)) {
				s.removeAt(pos - 1)
				pos--
			}
		}
	}
	if pos < len(s.es) {
		if next, ok := s.es[pos].(*expr.LE); ok {
			if s.an.Prove(expr.NewLE(expr.NewSub(le.A, next.A), zero)) {
				return
			}
			if s.an.Prove(expr.NewLE(expr.NewSub(next.A, le.A), zero)) {
				s.removeAt(pos)
			}
		}
	}
	s.insert(ineq)
}

// boundTerm represents the inequality coef*v + e <= 0 for the variable
// currently being eliminated.
type boundTerm struct {
	coef int64
	e    expr.Expr
}

// SolveSystemOfInequalities runs Fourier-Motzkin elimination over the
// given variables, in order. Each step classifies the current
// inequalities by the sign of the variable's coefficient, pairs every
// positive occurrence with every negative one to derive a constraint
// that no longer mentions the variable, and records the variable's own
// lower, upper and equality bounds over a common coefficient.
// Inequalities provable from vranges are dropped along the way, as are
// bounds dominated by a provably tighter one. Conditions that are not
// linear in the eliminated variable survive untouched in Other.
//
// The variable ranges participate as seed bounds, so the result can be
// tighter than the conditions alone imply; the range of the first
// variable effectively bounds the whole system.
func SolveSystemOfInequalities(inequalities []expr.Expr, vars []*expr.Var, vranges expr.Ranges) *Bounds {
	log := logger.Logger()
	an := arith.NewAnalyzer(vranges)
	res := &Bounds{Variables: vars, Bounds: make(map[*expr.Var]VarBounds, len(vars))}

	current := &ineqSet{an: an}
	for _, ineq := range inequalities {
		current.add(an.NormalizeComparisons(an.Simplify(ineq)))
	}

	var rest []expr.Expr

	for _, v := range vars {
		if _, dup := res.Bounds[v]; dup {
			panic("solver: variable " + v.Name + " appears twice in the inequality system")
		}
		next := &ineqSet{an: an}
		var coefPos, coefNeg []boundTerm

		// The variable's own range contributes one bound per side.
		if r, ok := vranges[v]; ok {
			lb := an.Simplify(r.Min)
			ub := an.Simplify(r.MaxValue())
			coefNeg = append(coefNeg, boundTerm{-1, lb})
			coefPos = append(coefPos, boundTerm{1, negate(ub)})
		}

		for _, ineq := range current.es {
			classified := false
			switch cmp := ineq.(type) {
			case *expr.LE:
				if c, e, ok := an.LinearizeSingle(cmp.A, v); ok {
					classified = true
					switch {
					case c == 0:
						next.add(ineq)
					case c > 0:
						coefPos = append(coefPos, boundTerm{c, e})
					default:
						coefNeg = append(coefNeg, boundTerm{c, e})
					}
				}
			case *expr.EQ:
				if c, e, ok := an.LinearizeSingle(cmp.A, v); ok {
					classified = true
					switch {
					case c == 0:
						next.add(ineq)
					case c > 0:
						coefPos = append(coefPos, boundTerm{c, e})
						coefNeg = append(coefNeg, boundTerm{-c, negate(e)})
					default:
						coefPos = append(coefPos, boundTerm{-c, negate(e)})
						coefNeg = append(coefNeg, boundTerm{c, e})
					}
				}
			}
			if !classified {
				rest = append(rest, ineq)
			}
		}

		// Adding a positive and a negative occurrence with the right
		// multipliers cancels the variable; the derived constraint
		// holds whenever both originals do.
		for _, p := range coefPos {
			for _, n := range coefNeg {
				g := gcd64(p.coef, -n.coef)
				cPos := n.coef / g
				cNeg := p.coef / g
				lhs := expr.NewSub(
					expr.NewMul(expr.TypedImm(v.Type, cNeg), n.e),
					expr.NewMul(expr.TypedImm(v.Type, cPos), p.e))
				derived := an.NormalizeComparisons(an.Simplify(expr.NewLE(lhs, expr.Zero(p.e.DType()))))
				next.add(derived)
			}
		}

		// All bounds are expressed over one common coefficient. An
		// occurrence whose coefficient would overflow the common
		// multiple is kept as a plain condition instead; the bounds
		// derived from the remaining occurrences stay valid.
		coefLCM := int64(1)
		var posKept, negKept []boundTerm
		for _, p := range coefPos {
			if l, ok := lcm64(coefLCM, p.coef); ok {
				coefLCM = l
				posKept = append(posKept, p)
				continue
			}
			log.Debug().Str("variable", v.Name).Int64("coef", p.coef).
				Msg("bound coefficient overflows the common multiple")
			rest = append(rest, an.Simplify(expr.NewLE(
				expr.NewAdd(expr.NewMul(expr.TypedImm(v.Type, p.coef), v), p.e),
				expr.Zero(v.Type))))
		}
		for _, n := range coefNeg {
			if l, ok := lcm64(coefLCM, -n.coef); ok {
				coefLCM = l
				negKept = append(negKept, n)
				continue
			}
			log.Debug().Str("variable", v.Name).Int64("coef", n.coef).
				Msg("bound coefficient overflows the common multiple")
			rest = append(rest, an.Simplify(expr.NewLE(
				expr.NewAdd(expr.NewMul(expr.TypedImm(v.Type, n.coef), v), n.e),
				expr.Zero(v.Type))))
		}

		var upper []expr.Expr
		for _, p := range posKept {
			bound := an.Simplify(expr.NewMul(expr.TypedImm(v.Type, -coefLCM/p.coef), p.e))
			if anyProves(an, upper, func(o expr.Expr) expr.Expr {
				return expr.NewLE(expr.NewSub(o, bound), expr.Zero(v.Type))
			}) {
				continue
			}
			upper = pruneProved(an, upper, func(o expr.Expr) expr.Expr {
				return expr.NewGE(expr.NewSub(o, bound), expr.Zero(v.Type))
			})
			upper = append(upper, bound)
		}
		var lower []expr.Expr
		for _, n := range negKept {
			bound := an.Simplify(expr.NewMul(expr.TypedImm(v.Type, -coefLCM/n.coef), n.e))
			if anyProves(an, lower, func(o expr.Expr) expr.Expr {
				return expr.NewGE(expr.NewSub(o, bound), expr.Zero(v.Type))
			}) {
				continue
			}
			lower = pruneProved(an, lower, func(o expr.Expr) expr.Expr {
				return expr.NewLE(expr.NewSub(o, bound), expr.Zero(v.Type))
			})
			lower = append(lower, bound)
		}

		upper = arith.SortedUnique(upper)
		lower = arith.SortedUnique(lower)

		// A bound from both sides pins the variable.
		equal := arith.IntersectSorted(upper, lower)
		res.Bounds[v] = VarBounds{
			Coef:  coefLCM,
			Lower: arith.DifferenceSorted(lower, equal),
			Equal: equal,
			Upper: arith.DifferenceSorted(upper, equal),
		}

		current = next
	}

	for _, e := range current.es {
		s := an.Simplify(e)
		if constFalse(s) {
			res.Other = []expr.Expr{expr.BImm(false)}
			return res
		}
		if !constTrue(s) {
			res.Other = append(res.Other, s)
		}
	}
	res.Other = append(res.Other, rest...)
	return res
}

func anyProves(an *arith.Analyzer, es []expr.Expr, cond func(expr.Expr) expr.Expr) bool {
	for _, e := range es {
		if an.Prove(cond(e)) {
			return true
		}
	}
	return false
}

func pruneProved(an *arith.Analyzer, es []expr.Expr, cond func(expr.Expr) expr.Expr) []expr.Expr {
	out := es[:0]
	for _, e := range es {
		if !an.Prove(cond(e)) {
			out = append(out, e)
		}
	}
	return out
}
