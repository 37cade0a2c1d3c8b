package zeroelim

import (
	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// IsSumCombiner reports whether the combiner is provably a plain sum:
// a single slot whose identity is zero and whose combine template
// equals lhs + rhs. Free parameters of the combiner are constrained by
// vranges; an unprovable property yields false, never an error.
func IsSumCombiner(c *expr.Combiner, vranges expr.Ranges) bool {
	if c.Arity() != 1 {
		return false
	}
	an := arith.NewAnalyzer(vranges)
	if !expr.IsZero(an.Simplify(c.Identity[0])) {
		return false
	}
	diff := expr.NewSub(c.Result[0], expr.NewAdd(c.Lhs[0], c.Rhs[0]))
	if expr.IsZero(an.Simplify(diff)) {
		return true
	}
	// Float slots have no linear normal form that would cancel the
	// difference, so compare the canonical trees against both operand
	// orders instead.
	res := an.Simplify(c.Result[0])
	return expr.Equal(res, an.Simplify(expr.NewAdd(c.Lhs[0], c.Rhs[0]))) ||
		expr.Equal(res, an.Simplify(expr.NewAdd(c.Rhs[0], c.Lhs[0])))
}

// CanFactorZeroFromCombiner reports whether tuples whose valueIndex
// slot is already the identity may be skipped without changing any
// slot of the result: the slot's identity is zero and combining two
// zeros in that slot yields zero again. This is what licenses
// restricting a reduction to the region where the slot is nonzero.
func CanFactorZeroFromCombiner(c *expr.Combiner, valueIndex int, vranges expr.Ranges) bool {
	if valueIndex < 0 || valueIndex >= c.Arity() {
		return false
	}
	an := arith.NewAnalyzer(vranges)
	if !expr.IsZero(an.Simplify(c.Identity[valueIndex])) {
		return false
	}
	zero := expr.Zero(c.Lhs[valueIndex].DType())
	in := expr.Substitute(c.Result[valueIndex], map[*expr.Var]expr.Expr{
		c.Lhs[valueIndex]: zero,
		c.Rhs[valueIndex]: zero,
	})
	return expr.IsZero(an.Simplify(in))
}
