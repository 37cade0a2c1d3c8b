package arith

import (
	"math"
	"sort"

	"github.com/sgrechanik-h/zeroelim/expr"
)

// The canonical form produced by simplify:
//
//   - integer arithmetic is flattened into linear normal form, terms
//     sorted by expr.Compare, constants folded and gathered at the end;
//   - division-like nodes keep only the part of the dividend that the
//     divisor does not divide, negative constant divisors are folded
//     away;
//   - comparisons are rewritten to EQ, NE and LE with gcd-reduced
//     coefficients; equalities get a fixed operand orientation so that
//     equal constraints compare equal as trees;
//   - And/Or chains are flattened, sorted and deduplicated;
//   - anything provable from the analyzer's ranges folds to a constant.
//
// Simplify is idempotent on its own output.
func (a *Analyzer) simplify(e expr.Expr) expr.Expr {
	switch n := e.(type) {
	case *expr.IntImm, *expr.FloatImm, *expr.BoolImm:
		return e
	case *expr.Var:
		if r, ok := a.ranges[n]; ok && expr.IsConstInt(r.Extent, 1) {
			return a.Simplify(r.Min)
		}
		return e
	case *expr.Cast:
		return a.simplifyCast(n)
	case *expr.Add:
		return a.simplifyArith(e, expr.NewAdd(a.Simplify(n.A), a.Simplify(n.B)))
	case *expr.Sub:
		return a.simplifyArith(e, expr.NewSub(a.Simplify(n.A), a.Simplify(n.B)))
	case *expr.Mul:
		A, B := a.Simplify(n.A), a.Simplify(n.B)
		if e.DType() == expr.Bool {
			return a.Simplify(expr.NewAnd(A, B))
		}
		return a.simplifyArith(e, expr.NewMul(A, B))
	case *expr.Div:
		return a.simplifyDiv(n)
	case *expr.Mod:
		return a.simplifyMod(n)
	case *expr.FloorDiv:
		return a.simplifyFloorDiv(n)
	case *expr.FloorMod:
		return a.simplifyFloorMod(n)
	case *expr.Min:
		return a.simplifyMinMax(e, n.A, n.B, true)
	case *expr.Max:
		return a.simplifyMinMax(e, n.A, n.B, false)
	case *expr.EQ:
		return a.simplifyCmp(e, cmpEQ, n.A, n.B)
	case *expr.NE:
		return a.simplifyCmp(e, cmpNE, n.A, n.B)
	case *expr.LT:
		return a.simplifyCmp(e, cmpLT, n.A, n.B)
	case *expr.LE:
		return a.simplifyCmp(e, cmpLE, n.A, n.B)
	case *expr.GT:
		return a.simplifyCmp(e, cmpLT, n.B, n.A)
	case *expr.GE:
		return a.simplifyCmp(e, cmpLE, n.B, n.A)
	case *expr.And:
		return a.simplifyConnective(e, true)
	case *expr.Or:
		return a.simplifyConnective(e, false)
	case *expr.Not:
		return a.simplifyNot(n)
	case *expr.Select:
		return a.simplifySelect(n)
	case *expr.Call:
		return a.simplifyCall(n)
	case *expr.Reduce:
		return a.simplifyReduce(n)
	}
	return e
}

func intRank(t expr.DType) int {
	switch t {
	case expr.Bool:
		return 1
	case expr.Int32:
		return 2
	case expr.Int64:
		return 3
	}
	return 0
}

func (a *Analyzer) simplifyCast(n *expr.Cast) expr.Expr {
	v := a.Simplify(n.Value)
	if inner, ok := v.(*expr.Cast); ok {
		// A widening inner cast loses nothing, so casting its operand
		// directly gives the same value.
		r0, r1 := intRank(inner.Value.DType()), intRank(inner.Type)
		if r0 > 0 && r1 >= r0 {
			return expr.NewCast(n.Type, inner.Value)
		}
	}
	return expr.NewCast(n.Type, v)
}

// simplifyArith handles Add, Sub and Mul. rebuilt has simplified
// operands; orig is returned untouched when nothing changes.
func (a *Analyzer) simplifyArith(orig, rebuilt expr.Expr) expr.Expr {
	if rebuilt.DType().IsInt() {
		if lf, ok := a.linOf(rebuilt); ok {
			res := lf.build()
			if expr.Equal(res, orig) {
				return orig
			}
			return res
		}
		return rebuilt
	}
	return foldFloatArith(rebuilt)
}

func foldFloatArith(e expr.Expr) expr.Expr {
	var A, B expr.Expr
	switch n := e.(type) {
	case *expr.Add:
		A, B = n.A, n.B
	case *expr.Sub:
		A, B = n.A, n.B
	case *expr.Mul:
		A, B = n.A, n.B
	default:
		return e
	}
	fa, aImm := A.(*expr.FloatImm)
	fb, bImm := B.(*expr.FloatImm)
	if aImm && bImm {
		switch e.(type) {
		case *expr.Add:
			return &expr.FloatImm{Type: fa.Type, Value: fa.Value + fb.Value}
		case *expr.Sub:
			return &expr.FloatImm{Type: fa.Type, Value: fa.Value - fb.Value}
		case *expr.Mul:
			return &expr.FloatImm{Type: fa.Type, Value: fa.Value * fb.Value}
		}
	}
	switch e.(type) {
	case *expr.Add:
		if aImm && fa.Value == 0 {
			return B
		}
		if bImm && fb.Value == 0 {
			return A
		}
	case *expr.Sub:
		if bImm && fb.Value == 0 {
			return A
		}
	case *expr.Mul:
		if aImm && fa.Value == 1 {
			return B
		}
		if bImm && fb.Value == 1 {
			return A
		}
		if (aImm && fa.Value == 0) || (bImm && fb.Value == 0) {
			return expr.Zero(e.DType())
		}
	}
	return e
}

func (a *Analyzer) simplifyDiv(n *expr.Div) expr.Expr {
	A, B := a.Simplify(n.A), a.Simplify(n.B)
	if !A.DType().IsInt() {
		if fa, ok := A.(*expr.FloatImm); ok {
			if fb, ok2 := B.(*expr.FloatImm); ok2 && fb.Value != 0 {
				return &expr.FloatImm{Type: fa.Type, Value: fa.Value / fb.Value}
			}
		}
		if fb, ok := B.(*expr.FloatImm); ok && fb.Value == 1 {
			return A
		}
		return expr.NewDiv(A, B)
	}
	if b, ok := expr.ImmValue(B); ok && b != 0 {
		if av, ok2 := expr.ImmValue(A); ok2 {
			return expr.TypedImm(A.DType(), av/b)
		}
		switch {
		case b == 1:
			return A
		case b == -1:
			return a.Simplify(expr.NewMul(A, expr.TypedImm(A.DType(), -1)))
		case b > 1:
			// Truncated and floor division agree on nonnegative
			// dividends, and the floor form splits.
			if lo := a.ConstBound(A); lo.HasLo && lo.Lo >= 0 {
				return a.Simplify(expr.NewFloorDiv(A, B))
			}
		}
	}
	if expr.IsZero(A) {
		return expr.Zero(A.DType())
	}
	return expr.NewDiv(A, B)
}

func (a *Analyzer) simplifyMod(n *expr.Mod) expr.Expr {
	A, B := a.Simplify(n.A), a.Simplify(n.B)
	if b, ok := expr.ImmValue(B); ok && b != 0 {
		if av, ok2 := expr.ImmValue(A); ok2 {
			return expr.TypedImm(A.DType(), av%b)
		}
		switch {
		case b == 1 || b == -1:
			return expr.Zero(A.DType())
		case b < 0:
			// Truncated remainder ignores the divisor sign.
			return a.Simplify(expr.NewMod(A, expr.TypedImm(B.DType(), -b)))
		default:
			if lo := a.ConstBound(A); lo.HasLo && lo.Lo >= 0 {
				return a.Simplify(expr.NewFloorMod(A, B))
			}
		}
	}
	if expr.IsZero(A) {
		return expr.Zero(A.DType())
	}
	return expr.NewMod(A, B)
}

func (a *Analyzer) simplifyFloorDiv(n *expr.FloorDiv) expr.Expr {
	A, B := a.Simplify(n.A), a.Simplify(n.B)
	if b, ok := expr.ImmValue(B); ok && b != 0 {
		if av, ok2 := expr.ImmValue(A); ok2 {
			return expr.TypedImm(A.DType(), floorDiv(av, b))
		}
		switch {
		case b == 1:
			return A
		case b == -1:
			return a.Simplify(expr.NewMul(A, expr.TypedImm(A.DType(), -1)))
		case b < 0 && b != math.MinInt64:
			// floordiv(x, -c) == floordiv(-x, c)
			neg := a.Simplify(expr.NewMul(A, expr.TypedImm(A.DType(), -1)))
			return a.Simplify(expr.NewFloorDiv(neg, expr.TypedImm(B.DType(), -b)))
		default:
			if lf, ok2 := a.linOf(A); ok2 {
				return a.splitFloorDiv(lf, b, B.DType())
			}
		}
	}
	if expr.IsZero(A) {
		return expr.Zero(A.DType())
	}
	return expr.NewFloorDiv(A, B)
}

// splitFloorDiv uses floordiv(x + k*b, b) == floordiv(x, b) + k to pull
// the divisible part of the dividend out of the division. b > 1.
func (a *Analyzer) splitFloorDiv(lf *linForm, b int64, bt expr.DType) expr.Expr {
	outer := &linForm{t: lf.t, c: floorDiv(lf.c, b)}
	inner := &linForm{t: lf.t, c: floorMod(lf.c, b)}
	for _, t := range lf.terms {
		if t.coef%b == 0 {
			outer.terms = append(outer.terms, linTerm{t.coef / b, t.atom})
		} else {
			inner.terms = append(inner.terms, linTerm{t.coef, t.atom})
		}
	}
	if len(inner.terms) == 0 {
		// 0 <= inner.c < b, so the remaining division is zero.
		return outer.build()
	}
	div := expr.NewFloorDiv(inner.build(), expr.TypedImm(bt, b))
	if len(outer.terms) == 0 && outer.c == 0 {
		return div
	}
	base := outer.build()
	withDiv := append(append([]linTerm(nil), outer.terms...), linTerm{1, div})
	if res, ok := normTerms(withDiv); ok {
		outer.terms = res
		return outer.build()
	}
	return expr.NewAdd(base, div)
}

func (a *Analyzer) simplifyFloorMod(n *expr.FloorMod) expr.Expr {
	A, B := a.Simplify(n.A), a.Simplify(n.B)
	if b, ok := expr.ImmValue(B); ok && b != 0 {
		if av, ok2 := expr.ImmValue(A); ok2 {
			return expr.TypedImm(A.DType(), floorMod(av, b))
		}
		switch {
		case b == 1 || b == -1:
			return expr.Zero(A.DType())
		case b < 0 && b != math.MinInt64:
			// floormod(x, -c) == -floormod(-x, c)
			neg := a.Simplify(expr.NewMul(A, expr.TypedImm(A.DType(), -1)))
			m := a.Simplify(expr.NewFloorMod(neg, expr.TypedImm(B.DType(), -b)))
			return a.Simplify(expr.NewMul(m, expr.TypedImm(A.DType(), -1)))
		default:
			if lf, ok2 := a.linOf(A); ok2 {
				inner := &linForm{t: lf.t, c: floorMod(lf.c, b)}
				for _, t := range lf.terms {
					if t.coef%b != 0 {
						inner.terms = append(inner.terms, t)
					}
				}
				if len(inner.terms) == 0 {
					return inner.imm(inner.c)
				}
				return expr.NewFloorMod(inner.build(), expr.TypedImm(B.DType(), b))
			}
		}
	}
	if expr.IsZero(A) {
		return expr.Zero(A.DType())
	}
	return expr.NewFloorMod(A, B)
}

func (a *Analyzer) simplifyMinMax(orig, ea, eb expr.Expr, isMin bool) expr.Expr {
	A, B := a.Simplify(ea), a.Simplify(eb)
	rebuild := func(x, y expr.Expr) expr.Expr {
		if isMin {
			return expr.NewMin(x, y)
		}
		return expr.NewMax(x, y)
	}
	if av, ok := expr.ImmValue(A); ok {
		if bv, ok2 := expr.ImmValue(B); ok2 {
			v := av
			if (isMin && bv < av) || (!isMin && bv > av) {
				v = bv
			}
			return expr.TypedImm(A.DType(), v)
		}
	}
	if fa, ok := A.(*expr.FloatImm); ok {
		if fb, ok2 := B.(*expr.FloatImm); ok2 {
			if isMin {
				return &expr.FloatImm{Type: fa.Type, Value: math.Min(fa.Value, fb.Value)}
			}
			return &expr.FloatImm{Type: fa.Type, Value: math.Max(fa.Value, fb.Value)}
		}
	}
	if expr.Equal(A, B) {
		return A
	}
	if A.DType().IsInt() {
		d := a.ConstBound(expr.NewSub(A, B))
		if d.HasHi && d.Hi <= 0 {
			if isMin {
				return A
			}
			return B
		}
		if d.HasLo && d.Lo >= 0 {
			if isMin {
				return B
			}
			return A
		}
	}
	if expr.Compare(A, B) > 0 {
		A, B = B, A
	}
	res := rebuild(A, B)
	if expr.Equal(res, orig) {
		return orig
	}
	return res
}

type cmpKind int

const (
	cmpEQ cmpKind = iota
	cmpNE
	cmpLT
	cmpLE
)

func (a *Analyzer) simplifyCmp(orig expr.Expr, k cmpKind, ea, eb expr.Expr) expr.Expr {
	A, B := a.Simplify(ea), a.Simplify(eb)
	if !A.DType().IsInt() || !B.DType().IsInt() {
		return a.foldCmpOther(orig, k, A, B)
	}
	lfA, okA := a.linOf(A)
	lfB, okB := a.linOf(B)
	if !okA || !okB || !lfA.add(lfB, -1) {
		return rebuildCmp(orig, k, A, B)
	}
	diff := lfA
	if k == cmpLT {
		c, ok := addOv(diff.c, 1)
		if !ok {
			return rebuildCmp(orig, k, A, B)
		}
		diff.c, k = c, cmpLE
	}
	if len(diff.terms) == 0 {
		switch k {
		case cmpEQ:
			return expr.BImm(diff.c == 0)
		case cmpNE:
			return expr.BImm(diff.c != 0)
		default:
			return expr.BImm(diff.c <= 0)
		}
	}
	if g := diff.coefGCD(); g > 1 {
		switch k {
		case cmpEQ, cmpNE:
			if diff.c%g != 0 {
				return expr.BImm(k == cmpNE)
			}
			diff.c /= g
		default:
			diff.c = -floorDiv(-diff.c, g)
		}
		for i := range diff.terms {
			diff.terms[i].coef /= g
		}
	}
	if (k == cmpEQ || k == cmpNE) && diff.terms[0].coef < 0 {
		if diff.c != math.MinInt64 {
			for i := range diff.terms {
				diff.terms[i].coef = -diff.terms[i].coef
			}
			diff.c = -diff.c
		}
	}
	b := a.boundLin(diff)
	switch k {
	case cmpEQ:
		if b.HasLo && b.HasHi && b.Lo == 0 && b.Hi == 0 {
			return expr.BImm(true)
		}
		if (b.HasLo && b.Lo > 0) || (b.HasHi && b.Hi < 0) {
			return expr.BImm(false)
		}
	case cmpNE:
		if (b.HasLo && b.Lo > 0) || (b.HasHi && b.Hi < 0) {
			return expr.BImm(true)
		}
		if b.HasLo && b.HasHi && b.Lo == 0 && b.Hi == 0 {
			return expr.BImm(false)
		}
	default:
		if b.HasHi && b.Hi <= 0 {
			return expr.BImm(true)
		}
		if b.HasLo && b.Lo > 0 {
			return expr.BImm(false)
		}
	}
	res := a.emitCmp(k, diff)
	if expr.Equal(res, orig) {
		return orig
	}
	return res
}

// emitCmp renders a gcd-reduced comparison back into a readable tree:
// single variables and variable pairs stay on the two sides of the
// operator, everything else becomes `lhs op 0`.
func (a *Analyzer) emitCmp(k cmpKind, lf *linForm) expr.Expr {
	mk := func(x, y expr.Expr) expr.Expr {
		switch k {
		case cmpEQ:
			return expr.NewEQ(x, y)
		case cmpNE:
			return expr.NewNE(x, y)
		default:
			return expr.NewLE(x, y)
		}
	}
	ts, c := lf.terms, lf.c
	if c != math.MinInt64 {
		switch {
		case len(ts) == 1 && ts[0].coef == 1:
			return mk(ts[0].atom, lf.imm(-c))
		case len(ts) == 1 && ts[0].coef == -1 && k == cmpLE:
			return expr.NewLE(lf.imm(c), ts[0].atom)
		case len(ts) == 2 && ts[0].coef == 1 && ts[1].coef == -1:
			rhs := (&linForm{terms: []linTerm{{1, ts[1].atom}}, c: -c, t: lf.t}).build()
			return mk(ts[0].atom, rhs)
		case len(ts) == 2 && ts[0].coef == -1 && ts[1].coef == 1 && k == cmpLE:
			lhs := (&linForm{terms: []linTerm{{1, ts[1].atom}}, c: c, t: lf.t}).build()
			return expr.NewLE(lhs, ts[0].atom)
		}
	}
	return mk(lf.build(), lf.imm(0))
}

func (a *Analyzer) foldCmpOther(orig expr.Expr, k cmpKind, A, B expr.Expr) expr.Expr {
	if fa, ok := A.(*expr.FloatImm); ok {
		if fb, ok2 := B.(*expr.FloatImm); ok2 {
			switch k {
			case cmpEQ:
				return expr.BImm(fa.Value == fb.Value)
			case cmpNE:
				return expr.BImm(fa.Value != fb.Value)
			case cmpLT:
				return expr.BImm(fa.Value < fb.Value)
			default:
				return expr.BImm(fa.Value <= fb.Value)
			}
		}
	}
	if ba, ok := A.(*expr.BoolImm); ok {
		if bb, ok2 := B.(*expr.BoolImm); ok2 {
			switch k {
			case cmpEQ:
				return expr.BImm(ba.Value == bb.Value)
			case cmpNE:
				return expr.BImm(ba.Value != bb.Value)
			}
		}
	}
	if expr.Equal(A, B) {
		switch k {
		case cmpEQ, cmpLE:
			return expr.BImm(true)
		case cmpNE, cmpLT:
			return expr.BImm(false)
		}
	}
	if (k == cmpEQ || k == cmpNE) && expr.Compare(A, B) > 0 {
		A, B = B, A
	}
	return rebuildCmp(orig, k, A, B)
}

func rebuildCmp(orig expr.Expr, k cmpKind, A, B expr.Expr) expr.Expr {
	var res expr.Expr
	switch k {
	case cmpEQ:
		res = expr.NewEQ(A, B)
	case cmpNE:
		res = expr.NewNE(A, B)
	case cmpLT:
		res = expr.NewLT(A, B)
	default:
		res = expr.NewLE(A, B)
	}
	if expr.Equal(res, orig) {
		return orig
	}
	return res
}

// contradicts reports whether x and y cannot hold together for the
// easy syntactic cases: one negating the other, or an equality against
// the same-operand disequality.
func contradicts(x, y expr.Expr) bool {
	if nx, ok := x.(*expr.Not); ok && expr.Equal(nx.A, y) {
		return true
	}
	if ny, ok := y.(*expr.Not); ok && expr.Equal(ny.A, x) {
		return true
	}
	if ex, ok := x.(*expr.EQ); ok {
		if ny, ok2 := y.(*expr.NE); ok2 && expr.Equal(ex.A, ny.A) && expr.Equal(ex.B, ny.B) {
			return true
		}
	}
	if ey, ok := y.(*expr.EQ); ok {
		if nx, ok2 := x.(*expr.NE); ok2 && expr.Equal(ey.A, nx.A) && expr.Equal(ey.B, nx.B) {
			return true
		}
	}
	return false
}

// simplifyConnective flattens an And (conj) or Or chain, simplifies
// the parts, sorts and deduplicates them.
func (a *Analyzer) simplifyConnective(e expr.Expr, conj bool) expr.Expr {
	var parts []expr.Expr
	var flatten func(x expr.Expr)
	flatten = func(x expr.Expr) {
		if conj {
			if n, ok := x.(*expr.And); ok {
				flatten(n.A)
				flatten(n.B)
				return
			}
		} else {
			if n, ok := x.(*expr.Or); ok {
				flatten(n.A)
				flatten(n.B)
				return
			}
		}
		parts = append(parts, a.Simplify(x))
	}
	flatten(e)
	out := parts[:0]
	for _, p := range parts {
		// Simplification of a part can expose nested connectives.
		if conj {
			if n, ok := p.(*expr.And); ok {
				parts = append(parts, n.A, n.B)
				continue
			}
		} else {
			if n, ok := p.(*expr.Or); ok {
				parts = append(parts, n.A, n.B)
				continue
			}
		}
		if b, ok := p.(*expr.BoolImm); ok {
			if b.Value != conj {
				return expr.BImm(!conj)
			}
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return expr.BImm(conj)
	}
	sort.SliceStable(out, func(i, j int) bool { return expr.Compare(out[i], out[j]) < 0 })
	ded := out[:1]
	for _, p := range out[1:] {
		if !expr.Equal(ded[len(ded)-1], p) {
			ded = append(ded, p)
		}
	}
	for i := 0; i < len(ded); i++ {
		for j := i + 1; j < len(ded); j++ {
			if contradicts(ded[i], ded[j]) {
				return expr.BImm(!conj)
			}
		}
	}
	var res expr.Expr = ded[0]
	for _, p := range ded[1:] {
		if conj {
			res = expr.NewAnd(res, p)
		} else {
			res = expr.NewOr(res, p)
		}
	}
	if expr.Equal(res, e) {
		return e
	}
	return res
}

func (a *Analyzer) simplifyNot(n *expr.Not) expr.Expr {
	c := a.Simplify(n.A)
	switch m := c.(type) {
	case *expr.BoolImm:
		return expr.BImm(!m.Value)
	case *expr.Not:
		return m.A
	case *expr.LT:
		return a.Simplify(expr.NewLE(m.B, m.A))
	case *expr.LE:
		return a.Simplify(expr.NewLT(m.B, m.A))
	case *expr.EQ:
		return a.Simplify(expr.NewNE(m.A, m.B))
	case *expr.NE:
		return a.Simplify(expr.NewEQ(m.A, m.B))
	}
	if c == n.A {
		return n
	}
	return expr.NewNot(c)
}

func (a *Analyzer) simplifySelect(n *expr.Select) expr.Expr {
	c := a.Simplify(n.Cond)
	tv := a.Simplify(n.Then)
	fv := a.Simplify(n.Else)
	if b, ok := c.(*expr.BoolImm); ok {
		if b.Value {
			return tv
		}
		return fv
	}
	if expr.Equal(tv, fv) {
		return tv
	}
	if bt, ok := tv.(*expr.BoolImm); ok {
		if bf, ok2 := fv.(*expr.BoolImm); ok2 {
			if bt.Value && !bf.Value {
				return c
			}
			if !bt.Value && bf.Value {
				return a.Simplify(expr.NewNot(c))
			}
		}
	}
	if c == n.Cond && tv == n.Then && fv == n.Else {
		return n
	}
	return expr.NewSelect(c, tv, fv)
}

func (a *Analyzer) simplifyCall(n *expr.Call) expr.Expr {
	changed := false
	args := make([]expr.Expr, len(n.Args))
	for i, arg := range n.Args {
		args[i] = a.Simplify(arg)
		changed = changed || args[i] != arg
	}
	if !changed {
		return n
	}
	return expr.NewCall(n.Type, n.Name, n.Tensor, args, n.ValueIndex)
}

func (a *Analyzer) simplifyReduce(n *expr.Reduce) expr.Expr {
	changed := false
	axes := make([]*expr.IterVar, len(n.Axes))
	for i, ax := range n.Axes {
		mn := a.Simplify(ax.Range.Min)
		ex := a.Simplify(ax.Range.Extent)
		if mn != ax.Range.Min || ex != ax.Range.Extent {
			axes[i] = &expr.IterVar{Var: ax.Var, Range: expr.Range{Min: mn, Extent: ex}}
			changed = true
		} else {
			axes[i] = ax
		}
	}
	sub := NewAnalyzer(a.ranges.Extend(expr.AxisRanges(axes)))
	src := make([]expr.Expr, len(n.Source))
	for i, s := range n.Source {
		src[i] = sub.Simplify(s)
		changed = changed || src[i] != s
	}
	cond := sub.Simplify(n.Condition)
	changed = changed || cond != n.Condition
	if !changed {
		return n
	}
	return expr.NewReduce(n.Combiner, src, axes, cond, n.ValueIndex)
}
