package arith

import "github.com/sgrechanik-h/zeroelim/expr"

// Prove reports whether cond always holds under the analyzer's ranges.
// A false result means the analyzer could not decide, never that the
// condition is false; use Prove on the negation for that.
func (a *Analyzer) Prove(cond expr.Expr) bool {
	return a.proved(a.Simplify(cond))
}

// ProvablyFalse reports whether cond can never hold.
func (a *Analyzer) ProvablyFalse(cond expr.Expr) bool {
	return a.Prove(expr.NewNot(cond))
}

func (a *Analyzer) proved(c expr.Expr) bool {
	switch n := c.(type) {
	case *expr.BoolImm:
		return n.Value
	case *expr.And:
		return a.proved(n.A) && a.proved(n.B)
	case *expr.Or:
		return a.proved(n.A) || a.proved(n.B)
	case *expr.EQ:
		b := a.cmpBound(n.A, n.B)
		return b.HasLo && b.HasHi && b.Lo == 0 && b.Hi == 0
	case *expr.NE:
		b := a.cmpBound(n.A, n.B)
		return (b.HasLo && b.Lo > 0) || (b.HasHi && b.Hi < 0)
	case *expr.LT:
		b := a.cmpBound(n.A, n.B)
		return b.HasHi && b.Hi < 0
	case *expr.LE:
		b := a.cmpBound(n.A, n.B)
		return b.HasHi && b.Hi <= 0
	case *expr.GT:
		b := a.cmpBound(n.A, n.B)
		return b.HasLo && b.Lo > 0
	case *expr.GE:
		b := a.cmpBound(n.A, n.B)
		return b.HasLo && b.Lo >= 0
	}
	return false
}

func (a *Analyzer) cmpBound(x, y expr.Expr) Bound {
	if !x.DType().IsInt() || !y.DType().IsInt() {
		return noBound()
	}
	return a.ConstBound(expr.NewSub(x, y))
}
