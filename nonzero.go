package zeroelim

import (
	"fmt"

	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// nzResult is an expression split into a nonzeroness condition and the
// value it takes where the condition holds: the original expression is
// exactly select(cond, value, 0).
type nzResult struct {
	cond  expr.Expr
	value expr.Expr
}

func (r nzResult) toExpr() expr.Expr {
	return expr.SelectElseZero(r.cond, r.value)
}

// NonzeronessCondition computes a condition outside which e is exactly
// zero, together with the value e takes inside it. The split is tight
// downward: whenever cond is false, e is zero; cond may still be true
// at points where e happens to be zero. Constructs the analysis cannot
// see through, currently reductions, yield ErrUnsupported.
func NonzeronessCondition(e expr.Expr) (cond, value expr.Expr, err error) {
	l := &nonzeroLifter{an: arith.NewAnalyzer(nil)}
	res, err := l.lift(e)
	if err != nil {
		return nil, nil, err
	}
	return res.cond, res.value, nil
}

// LiftNonzeronessCondition rewrites e into select(cond, value, 0) form
// with the condition computed by NonzeronessCondition. The result is
// always a select node, even when the condition is trivially true.
func LiftNonzeronessCondition(e expr.Expr) (expr.Expr, error) {
	l := &nonzeroLifter{an: arith.NewAnalyzer(nil)}
	res, err := l.lift(e)
	if err != nil {
		return nil, err
	}
	return res.toExpr(), nil
}

type nonzeroLifter struct {
	an *arith.Analyzer
}

func (l *nonzeroLifter) lift(e expr.Expr) (nzResult, error) {
	// A boolean is nonzero exactly when it is true.
	if e.DType() == expr.Bool {
		return nzResult{cond: e, value: expr.BImm(true)}, nil
	}
	switch n := e.(type) {
	case *expr.IntImm:
		return nzResult{cond: expr.BImm(n.Value != 0), value: e}, nil
	case *expr.FloatImm:
		return nzResult{cond: expr.BImm(n.Value != 0), value: e}, nil
	case *expr.Add:
		return l.addLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewAdd(a, b) })
	case *expr.Sub:
		return l.addLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewSub(a, b) })
	case *expr.Min:
		return l.addLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewMin(a, b) })
	case *expr.Max:
		return l.addLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewMax(a, b) })
	case *expr.Mul:
		return l.mul(n)
	case *expr.Div:
		return l.divLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewDiv(a, b) })
	case *expr.Mod:
		return l.divLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewMod(a, b) })
	case *expr.FloorDiv:
		return l.divLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewFloorDiv(a, b) })
	case *expr.FloorMod:
		return l.divLike(n.A, n.B, func(a, b expr.Expr) expr.Expr { return expr.NewFloorMod(a, b) })
	case *expr.Cast:
		in, err := l.lift(n.Value)
		if err != nil {
			return nzResult{}, err
		}
		return nzResult{cond: in.cond, value: expr.NewCast(n.Type, in.value)}, nil
	case *expr.Select:
		return l.sel(n)
	case *expr.Reduce:
		return nzResult{}, fmt.Errorf("%w: reduction inside a lifted expression, extract it into a tensor first", ErrUnsupported)
	case *expr.Var, *expr.Call:
		return nzResult{cond: expr.BImm(true), value: e}, nil
	default:
		return nzResult{cond: expr.BImm(true), value: e}, nil
	}
}

// addLike handles operators that are zero only when both operands are:
// the conditions join with Or, and an operand whose own condition is
// weaker than the joined one gets re-wrapped in its select so that it
// still contributes exactly zero outside it.
func (l *nonzeroLifter) addLike(a, b expr.Expr, mk func(a, b expr.Expr) expr.Expr) (nzResult, error) {
	nzA, err := l.lift(a)
	if err != nil {
		return nzResult{}, err
	}
	nzB, err := l.lift(b)
	if err != nil {
		return nzResult{}, err
	}
	condA := l.an.Simplify(nzA.cond)
	condB := l.an.Simplify(nzB.cond)
	if expr.Equal(condA, condB) {
		return nzResult{cond: condA, value: mk(nzA.value, nzB.value)}, nil
	}
	cond := l.an.Simplify(expr.NewOr(condA, condB))
	va := nzA.value
	if !expr.Equal(condA, cond) {
		va = nzA.toExpr()
	}
	vb := nzB.value
	if !expr.Equal(condB, cond) {
		vb = nzB.toExpr()
	}
	return nzResult{cond: cond, value: mk(va, vb)}, nil
}

// mul joins with And: a product is zero as soon as either factor is.
func (l *nonzeroLifter) mul(n *expr.Mul) (nzResult, error) {
	nzA, err := l.lift(n.A)
	if err != nil {
		return nzResult{}, err
	}
	nzB, err := l.lift(n.B)
	if err != nil {
		return nzResult{}, err
	}
	cond := l.an.Simplify(expr.NewAnd(nzA.cond, nzB.cond))
	return nzResult{cond: cond, value: expr.NewMul(nzA.value, nzB.value)}, nil
}

// divLike lifts through the numerator only; the denominator is assumed
// nonzero by construction and stays untouched.
func (l *nonzeroLifter) divLike(a, b expr.Expr, mk func(a, b expr.Expr) expr.Expr) (nzResult, error) {
	nzA, err := l.lift(a)
	if err != nil {
		return nzResult{}, err
	}
	return nzResult{cond: nzA.cond, value: mk(nzA.value, b)}, nil
}

func (l *nonzeroLifter) sel(n *expr.Select) (nzResult, error) {
	nzT, err := l.lift(n.Then)
	if err != nil {
		return nzResult{}, err
	}
	nzF, err := l.lift(n.Else)
	if err != nil {
		return nzResult{}, err
	}
	// A zero branch means the select itself can dissolve into the
	// condition.
	if expr.IsZero(nzF.value) {
		cond := l.an.Simplify(expr.NewAnd(n.Cond, nzT.cond))
		return nzResult{cond: cond, value: nzT.value}, nil
	}
	if expr.IsZero(nzT.value) {
		cond := l.an.Simplify(expr.NewAnd(expr.NewNot(n.Cond), nzF.cond))
		return nzResult{cond: cond, value: nzF.value}, nil
	}
	cond := l.an.Simplify(expr.NewOr(
		expr.NewAnd(n.Cond, nzT.cond),
		expr.NewAnd(expr.NewNot(n.Cond), nzF.cond)))
	return nzResult{cond: cond, value: expr.NewSelect(n.Cond, nzT.value, nzF.value)}, nil
}
