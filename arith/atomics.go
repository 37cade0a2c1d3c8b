package arith

import (
	"sort"

	"github.com/sgrechanik-h/zeroelim/expr"
)

// NormalizeComparisons rewrites every comparison in e into the shape
// `lhs op 0` with a simplified left side, turning strict integer
// comparisons into non-strict ones. The inequality solver relies on
// this shape.
func (a *Analyzer) NormalizeComparisons(e expr.Expr) expr.Expr {
	switch n := e.(type) {
	case *expr.EQ:
		return a.normCmp(n.A, n.B, mkEQ)
	case *expr.NE:
		return a.normCmp(n.A, n.B, mkNE)
	case *expr.LT:
		return a.normLT(n.A, n.B)
	case *expr.LE:
		return a.normCmp(n.A, n.B, mkLE)
	case *expr.GT:
		return a.normLT(n.B, n.A)
	case *expr.GE:
		return a.normCmp(n.B, n.A, mkLE)
	}
	return expr.MapChildren(e, a.NormalizeComparisons)
}

func mkEQ(a, b expr.Expr) expr.Expr { return expr.NewEQ(a, b) }
func mkNE(a, b expr.Expr) expr.Expr { return expr.NewNE(a, b) }
func mkLE(a, b expr.Expr) expr.Expr { return expr.NewLE(a, b) }

func (a *Analyzer) normCmp(x, y expr.Expr, mk func(a, b expr.Expr) expr.Expr) expr.Expr {
	if !x.DType().IsInt() && !x.DType().IsFloat() {
		return mk(x, y)
	}
	d := a.Simplify(expr.NewSub(x, y))
	return mk(d, expr.Zero(d.DType()))
}

func (a *Analyzer) normLT(x, y expr.Expr) expr.Expr {
	if x.DType().IsInt() {
		d := a.Simplify(expr.NewAdd(expr.NewSub(x, y), expr.One(x.DType())))
		return expr.NewLE(d, expr.Zero(d.DType()))
	}
	if x.DType().IsFloat() {
		d := a.Simplify(expr.NewSub(x, y))
		return expr.NewLT(d, expr.Zero(d.DType()))
	}
	return expr.NewLT(x, y)
}

// Atomics is a boolean condition factored into a conjunction of atomic
// formulas and a residual. Atomic formulas are comparisons, variables,
// calls and constants: anything that is not a logical operation at the
// top. The Atomic slice is sorted by expr.Compare and deduplicated;
// Rest is true when there is nothing else.
type Atomics struct {
	Atomic []expr.Expr
	Rest   expr.Expr
}

// ToExpr conjoins the atoms and the residual back together.
func (f Atomics) ToExpr() expr.Expr {
	return expr.AndAll(f.ToSlice()...)
}

// ToSlice returns the atoms plus the residual when it is nontrivial.
func (f Atomics) ToSlice() []expr.Expr {
	out := append([]expr.Expr(nil), f.Atomic...)
	if !isConstTrue(f.Rest) {
		out = append(out, f.Rest)
	}
	return out
}

func isConstTrue(e expr.Expr) bool {
	b, ok := e.(*expr.BoolImm)
	return ok && b.Value
}

// FactorOutAtomicFormulas splits a boolean expression into atomic
// conjuncts and a residual:
//
//   - And distributes, the atom sets are united;
//   - Or keeps only the atoms common to both sides and folds the
//     leftovers back into the residual disjunction;
//   - Select and Not over connectives are rewritten into And/Or/Not
//     first;
//   - Mul of booleans counts as And.
func FactorOutAtomicFormulas(e expr.Expr) Atomics {
	switch n := e.(type) {
	case *expr.BoolImm:
		if n.Value {
			return Atomics{Rest: expr.BImm(true)}
		}
		return atomic(e)
	case *expr.And:
		fa, fb := FactorOutAtomicFormulas(n.A), FactorOutAtomicFormulas(n.B)
		return Atomics{
			Atomic: unionSorted(fa.Atomic, fb.Atomic),
			Rest:   andFold(fa.Rest, fb.Rest),
		}
	case *expr.Mul:
		if e.DType() == expr.Bool {
			return FactorOutAtomicFormulas(expr.NewAnd(n.A, n.B))
		}
		return atomic(e)
	case *expr.Or:
		fa, fb := FactorOutAtomicFormulas(n.A), FactorOutAtomicFormulas(n.B)
		common := IntersectSorted(fa.Atomic, fb.Atomic)
		fa.Atomic = DifferenceSorted(fa.Atomic, common)
		fb.Atomic = DifferenceSorted(fb.Atomic, common)
		return Atomics{
			Atomic: common,
			Rest:   expr.NewOr(fa.ToExpr(), fb.ToExpr()),
		}
	case *expr.Select:
		c := n.Cond
		rewritten := expr.NewOr(
			expr.NewAnd(c, n.Then),
			expr.NewAnd(expr.NewNot(c), n.Else),
		)
		return FactorOutAtomicFormulas(rewritten)
	case *expr.Not:
		switch inner := n.A.(type) {
		case *expr.Or:
			return FactorOutAtomicFormulas(expr.NewAnd(expr.NewNot(inner.A), expr.NewNot(inner.B)))
		case *expr.And:
			return FactorOutAtomicFormulas(expr.NewOr(expr.NewNot(inner.A), expr.NewNot(inner.B)))
		case *expr.Select:
			rewritten := expr.NewAnd(
				expr.NewOr(expr.NewNot(inner.Cond), expr.NewNot(inner.Then)),
				expr.NewOr(inner.Cond, expr.NewNot(inner.Else)),
			)
			return FactorOutAtomicFormulas(rewritten)
		}
		return atomic(e)
	}
	return atomic(e)
}

func atomic(e expr.Expr) Atomics {
	return Atomics{Atomic: []expr.Expr{e}, Rest: expr.BImm(true)}
}

func andFold(x, y expr.Expr) expr.Expr {
	if isConstTrue(x) {
		return y
	}
	if isConstTrue(y) {
		return x
	}
	return expr.NewAnd(x, y)
}

func unionSorted(a, b []expr.Expr) []expr.Expr {
	out := make([]expr.Expr, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := expr.Compare(a[i], b[j]); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// IntersectSorted intersects two expression slices sorted by Compare.
func IntersectSorted(a, b []expr.Expr) []expr.Expr {
	var out []expr.Expr
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := expr.Compare(a[i], b[j]); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// DifferenceSorted returns the elements of a not present in b; both
// slices must be sorted by Compare.
func DifferenceSorted(a, b []expr.Expr) []expr.Expr {
	var out []expr.Expr
	i, j := 0, 0
	for i < len(a) {
		if j >= len(b) || expr.Compare(a[i], b[j]) < 0 {
			out = append(out, a[i])
			i++
		} else if expr.Compare(a[i], b[j]) > 0 {
			j++
		} else {
			i++
			j++
		}
	}
	return out
}

// SortedUnique sorts conds by the structural order and removes
// duplicates in place.
func SortedUnique(conds []expr.Expr) []expr.Expr {
	sort.SliceStable(conds, func(i, j int) bool { return expr.Compare(conds[i], conds[j]) < 0 })
	out := conds[:0]
	for _, c := range conds {
		if len(out) == 0 || !expr.Equal(out[len(out)-1], c) {
			out = append(out, c)
		}
	}
	return out
}
