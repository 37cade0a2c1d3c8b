// Package solver finds smaller equivalent shapes for iteration
// domains. It solves the linear integer equations among the domain
// conditions by exact Gaussian elimination, tightens inequalities with
// Fourier-Motzkin elimination, deskews variable ranges to start at
// zero, and optionally eliminates division and modulo from conditions
// by introducing fresh variables. SimplifyDomain drives these passes
// to a fixed point and SimplifyReductionDomain applies the result to a
// reduction node.
//
// Every pass returns a domain.Transform whose Old field is exactly the
// domain it was given, so results compose with domain.Compose.
package solver

import (
	"sort"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
)

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return abs64(a)
}

// lcm64 reports failure when the least common multiple does not fit
// in int64.
func lcm64(a, b int64) (int64, bool) {
	g := gcd64(a, b)
	if g == 0 {
		return 0, true
	}
	q := a / g
	r := q * b
	if q != 0 && r/q != b {
		return 0, false
	}
	return abs64(r), true
}

// sortedRangeVars returns the keys of rs in the canonical variable
// order. Map iteration order must never leak into generated variable
// names or condition order.
func sortedRangeVars(rs expr.Ranges) []*expr.Var {
	vars := make([]*expr.Var, 0, len(rs))
	for v := range rs {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return expr.Compare(vars[i], vars[j]) < 0 })
	return vars
}

// rangeIntervals converts a range environment into the interval map
// EvalInterval expects.
func rangeIntervals(a *arith.Analyzer, rs expr.Ranges) arith.IntervalMap {
	ivs := make(arith.IntervalMap, len(rs))
	for v, r := range rs {
		ivs[v] = a.RangeInterval(r)
	}
	return ivs
}

func constTrue(e expr.Expr) bool {
	b, ok := e.(*expr.BoolImm)
	return ok && b.Value
}

func constFalse(e expr.Expr) bool {
	b, ok := e.(*expr.BoolImm)
	return ok && !b.Value
}

func negate(e expr.Expr) expr.Expr {
	return expr.NewSub(expr.Zero(e.DType()), e)
}
