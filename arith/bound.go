package arith

import (
	"github.com/sgrechanik-h/zeroelim/expr"
)

// Bound is a constant interval estimate [Lo, Hi] of an integer
// expression. A missing side means unbounded in that direction;
// arithmetic that would overflow also degrades to unbounded, which is
// always sound.
type Bound struct {
	Lo, Hi       int64
	HasLo, HasHi bool
}

func pointBound(v int64) Bound { return Bound{Lo: v, Hi: v, HasLo: true, HasHi: true} }

func noBound() Bound { return Bound{} }

func (b Bound) addB(o Bound) Bound {
	var r Bound
	if b.HasLo && o.HasLo {
		if lo, ok := addOv(b.Lo, o.Lo); ok {
			r.Lo, r.HasLo = lo, true
		}
	}
	if b.HasHi && o.HasHi {
		if hi, ok := addOv(b.Hi, o.Hi); ok {
			r.Hi, r.HasHi = hi, true
		}
	}
	return r
}

func (b Bound) negB() Bound {
	var r Bound
	if b.HasHi && b.Hi != minInt64 {
		r.Lo, r.HasLo = -b.Hi, true
	}
	if b.HasLo && b.Lo != minInt64 {
		r.Hi, r.HasHi = -b.Lo, true
	}
	return r
}

const minInt64 = -1 << 63

// scaleB multiplies the interval by a constant.
func (b Bound) scaleB(k int64) Bound {
	if k == 0 {
		return pointBound(0)
	}
	if k < 0 {
		return b.negB().scaleB(-k)
	}
	var r Bound
	if b.HasLo {
		if lo, ok := mulOv(b.Lo, k); ok {
			r.Lo, r.HasLo = lo, true
		}
	}
	if b.HasHi {
		if hi, ok := mulOv(b.Hi, k); ok {
			r.Hi, r.HasHi = hi, true
		}
	}
	return r
}

func (b Bound) mulB(o Bound) Bound {
	// A fully known side lets the product of endpoints bound the
	// result; otherwise give up.
	if !b.HasLo || !b.HasHi || !o.HasLo || !o.HasHi {
		if o.HasLo && o.HasHi && o.Lo == o.Hi {
			return b.scaleB(o.Lo)
		}
		if b.HasLo && b.HasHi && b.Lo == b.Hi {
			return o.scaleB(b.Lo)
		}
		return noBound()
	}
	corners := [4]struct {
		v  int64
		ok bool
	}{}
	pairs := [4][2]int64{{b.Lo, o.Lo}, {b.Lo, o.Hi}, {b.Hi, o.Lo}, {b.Hi, o.Hi}}
	for i, p := range pairs {
		corners[i].v, corners[i].ok = mulOv(p[0], p[1])
		if !corners[i].ok {
			return noBound()
		}
	}
	lo, hi := corners[0].v, corners[0].v
	for _, c := range corners[1:] {
		if c.v < lo {
			lo = c.v
		}
		if c.v > hi {
			hi = c.v
		}
	}
	return Bound{Lo: lo, Hi: hi, HasLo: true, HasHi: true}
}

func (b Bound) unionB(o Bound) Bound {
	var r Bound
	if b.HasLo && o.HasLo {
		r.HasLo = true
		r.Lo = b.Lo
		if o.Lo < r.Lo {
			r.Lo = o.Lo
		}
	}
	if b.HasHi && o.HasHi {
		r.HasHi = true
		r.Hi = b.Hi
		if o.Hi > r.Hi {
			r.Hi = o.Hi
		}
	}
	return r
}

func (b Bound) minB(o Bound) Bound {
	var r Bound
	if b.HasLo && o.HasLo {
		r.HasLo = true
		r.Lo = b.Lo
		if o.Lo < r.Lo {
			r.Lo = o.Lo
		}
	}
	switch {
	case b.HasHi && o.HasHi:
		r.HasHi = true
		r.Hi = b.Hi
		if o.Hi < r.Hi {
			r.Hi = o.Hi
		}
	case b.HasHi:
		r.HasHi, r.Hi = true, b.Hi
	case o.HasHi:
		r.HasHi, r.Hi = true, o.Hi
	}
	return r
}

func (b Bound) maxB(o Bound) Bound {
	return b.negB().minB(o.negB()).negB()
}

// ConstBound estimates a constant interval for an integer expression
// using the analyzer's variable ranges.
func (a *Analyzer) ConstBound(e expr.Expr) Bound {
	return a.constBound(e, make(map[*expr.Var]bool))
}

func (a *Analyzer) constBound(e expr.Expr, visiting map[*expr.Var]bool) Bound {
	switch n := e.(type) {
	case *expr.IntImm:
		return pointBound(n.Value)
	case *expr.Var:
		if visiting[n] {
			return noBound()
		}
		r, ok := a.ranges[n]
		if !ok {
			return noBound()
		}
		visiting[n] = true
		bmin := a.constBound(r.Min, visiting)
		bext := a.constBound(r.Extent, visiting)
		delete(visiting, n)
		res := Bound{Lo: bmin.Lo, HasLo: bmin.HasLo}
		if bmin.HasHi && bext.HasHi {
			if hi, ok := addOv(bmin.Hi, bext.Hi); ok {
				if hi, ok = addOv(hi, -1); ok {
					res.Hi, res.HasHi = hi, true
				}
			}
		}
		return res
	case *expr.Cast:
		if n.Value.DType() == expr.Bool {
			return Bound{Lo: 0, Hi: 1, HasLo: true, HasHi: true}
		}
		if n.Value.DType().IsInt() && n.Type.IsInt() {
			return a.constBound(n.Value, visiting)
		}
		return noBound()
	case *expr.Add:
		return a.constBound(n.A, visiting).addB(a.constBound(n.B, visiting))
	case *expr.Sub:
		return a.constBound(n.A, visiting).addB(a.constBound(n.B, visiting).negB())
	case *expr.Mul:
		return a.constBound(n.A, visiting).mulB(a.constBound(n.B, visiting))
	case *expr.Div:
		return a.divBound(n.A, n.B, visiting, false)
	case *expr.FloorDiv:
		return a.divBound(n.A, n.B, visiting, true)
	case *expr.Mod:
		if b, ok := expr.ImmValue(n.B); ok && b != 0 {
			if b < 0 {
				b = -b
			}
			opnd := a.constBound(n.A, visiting)
			switch {
			case opnd.HasLo && opnd.Lo >= 0:
				return Bound{Lo: 0, Hi: b - 1, HasLo: true, HasHi: true}
			case opnd.HasHi && opnd.Hi <= 0:
				return Bound{Lo: -(b - 1), Hi: 0, HasLo: true, HasHi: true}
			default:
				return Bound{Lo: -(b - 1), Hi: b - 1, HasLo: true, HasHi: true}
			}
		}
		return noBound()
	case *expr.FloorMod:
		if b, ok := expr.ImmValue(n.B); ok && b > 0 {
			return Bound{Lo: 0, Hi: b - 1, HasLo: true, HasHi: true}
		}
		return noBound()
	case *expr.Min:
		return a.constBound(n.A, visiting).minB(a.constBound(n.B, visiting))
	case *expr.Max:
		return a.constBound(n.A, visiting).maxB(a.constBound(n.B, visiting))
	case *expr.Select:
		return a.constBound(n.Then, visiting).unionB(a.constBound(n.Else, visiting))
	}
	return noBound()
}

func (a *Analyzer) divBound(ea, eb expr.Expr, visiting map[*expr.Var]bool, floor bool) Bound {
	b, ok := expr.ImmValue(eb)
	if !ok || b == 0 {
		return noBound()
	}
	opnd := a.constBound(ea, visiting)
	div := func(x int64) int64 {
		if floor {
			return floorDiv(x, b)
		}
		return x / b
	}
	var r Bound
	if b > 0 {
		if opnd.HasLo {
			r.Lo, r.HasLo = div(opnd.Lo), true
		}
		if opnd.HasHi {
			r.Hi, r.HasHi = div(opnd.Hi), true
		}
	} else {
		if opnd.HasHi {
			r.Lo, r.HasLo = div(opnd.Hi), true
		}
		if opnd.HasLo {
			r.Hi, r.HasHi = div(opnd.Lo), true
		}
	}
	return r
}

// boundLin bounds a linear form directly from the bounds of its atoms.
func (a *Analyzer) boundLin(lf *linForm) Bound {
	res := pointBound(lf.c)
	visiting := make(map[*expr.Var]bool)
	for _, t := range lf.terms {
		res = res.addB(a.constBound(t.atom, visiting).scaleB(t.coef))
		if !res.HasLo && !res.HasHi {
			return res
		}
	}
	return res
}

// Interval is a symbolic closed interval. A nil end means unbounded in
// that direction.
type Interval struct {
	Min, Max expr.Expr
}

// Point is the interval containing exactly e.
func Point(e expr.Expr) Interval { return Interval{Min: e, Max: e} }

// FullInterval is unbounded on both sides.
func FullInterval() Interval { return Interval{} }

// IntervalMap assigns intervals to variables for EvalInterval.
// Variables not in the map are treated as opaque single points, so the
// result may mention them symbolically.
type IntervalMap map[*expr.Var]Interval

// RangeInterval converts a half-open range to a closed interval.
func (a *Analyzer) RangeInterval(r expr.Range) Interval {
	return Interval{Min: a.Simplify(r.Min), Max: a.Simplify(r.MaxValue())}
}

// CoverRange converts the interval back to a half-open range. Fails on
// intervals unbounded on either side.
func (a *Analyzer) CoverRange(iv Interval) (expr.Range, bool) {
	if iv.Min == nil || iv.Max == nil {
		return expr.Range{}, false
	}
	ext := a.Simplify(expr.NewAdd(expr.NewSub(iv.Max, iv.Min), expr.One(iv.Min.DType())))
	return expr.Range{Min: iv.Min, Extent: ext}, true
}

func (a *Analyzer) ivAdd(x, y Interval) Interval {
	var r Interval
	if x.Min != nil && y.Min != nil {
		r.Min = a.Simplify(expr.NewAdd(x.Min, y.Min))
	}
	if x.Max != nil && y.Max != nil {
		r.Max = a.Simplify(expr.NewAdd(x.Max, y.Max))
	}
	return r
}

func (a *Analyzer) ivNeg(x Interval) Interval {
	var r Interval
	if x.Max != nil {
		r.Min = a.Simplify(expr.NewSub(expr.Zero(x.Max.DType()), x.Max))
	}
	if x.Min != nil {
		r.Max = a.Simplify(expr.NewSub(expr.Zero(x.Min.DType()), x.Min))
	}
	return r
}

func (a *Analyzer) ivScale(x Interval, k int64, t expr.DType) Interval {
	if k == 0 {
		return Point(expr.Zero(t))
	}
	if k < 0 {
		return a.ivScale(a.ivNeg(x), -k, t)
	}
	var r Interval
	if x.Min != nil {
		r.Min = a.Simplify(expr.NewMul(x.Min, expr.TypedImm(t, k)))
	}
	if x.Max != nil {
		r.Max = a.Simplify(expr.NewMul(x.Max, expr.TypedImm(t, k)))
	}
	return r
}

// EvalInterval computes a symbolic interval covering every value e can
// take when each mapped variable sweeps its interval. Unmapped
// variables stay symbolic.
func (a *Analyzer) EvalInterval(e expr.Expr, ivs IntervalMap) Interval {
	switch n := e.(type) {
	case *expr.IntImm:
		return Point(e)
	case *expr.Var:
		if iv, ok := ivs[n]; ok {
			return iv
		}
		return Point(e)
	case *expr.Cast:
		if n.Type.IsInt() && n.Value.DType().IsInt() {
			return a.EvalInterval(n.Value, ivs)
		}
		return FullInterval()
	case *expr.Add:
		return a.ivAdd(a.EvalInterval(n.A, ivs), a.EvalInterval(n.B, ivs))
	case *expr.Sub:
		return a.ivAdd(a.EvalInterval(n.A, ivs), a.ivNeg(a.EvalInterval(n.B, ivs)))
	case *expr.Mul:
		if k, ok := expr.ImmValue(n.B); ok {
			return a.ivScale(a.EvalInterval(n.A, ivs), k, e.DType())
		}
		if k, ok := expr.ImmValue(n.A); ok {
			return a.ivScale(a.EvalInterval(n.B, ivs), k, e.DType())
		}
		x, y := a.EvalInterval(n.A, ivs), a.EvalInterval(n.B, ivs)
		if x.Min != nil && x.Max != nil && expr.Equal(x.Min, x.Max) &&
			y.Min != nil && y.Max != nil && expr.Equal(y.Min, y.Max) {
			return Point(a.Simplify(expr.NewMul(x.Min, y.Min)))
		}
		return FullInterval()
	case *expr.FloorDiv:
		return a.ivDiv(n.A, n.B, ivs, true)
	case *expr.Div:
		return a.ivDiv(n.A, n.B, ivs, false)
	case *expr.FloorMod:
		if b, ok := expr.ImmValue(n.B); ok && b > 0 {
			t := e.DType()
			return Interval{Min: expr.Zero(t), Max: expr.TypedImm(t, b-1)}
		}
		return FullInterval()
	case *expr.Mod:
		if b, ok := expr.ImmValue(n.B); ok && b > 0 {
			t := e.DType()
			opnd := a.EvalInterval(n.A, ivs)
			if opnd.Min != nil && a.Prove(expr.NewLE(expr.Zero(t), opnd.Min)) {
				return Interval{Min: expr.Zero(t), Max: expr.TypedImm(t, b-1)}
			}
			return Interval{Min: expr.TypedImm(t, -(b - 1)), Max: expr.TypedImm(t, b-1)}
		}
		return FullInterval()
	case *expr.Min:
		x, y := a.EvalInterval(n.A, ivs), a.EvalInterval(n.B, ivs)
		var r Interval
		if x.Min != nil && y.Min != nil {
			r.Min = a.Simplify(expr.NewMin(x.Min, y.Min))
		}
		switch {
		case x.Max != nil && y.Max != nil:
			r.Max = a.Simplify(expr.NewMin(x.Max, y.Max))
		case x.Max != nil:
			r.Max = x.Max
		case y.Max != nil:
			r.Max = y.Max
		}
		return r
	case *expr.Max:
		x, y := a.EvalInterval(n.A, ivs), a.EvalInterval(n.B, ivs)
		var r Interval
		if x.Max != nil && y.Max != nil {
			r.Max = a.Simplify(expr.NewMax(x.Max, y.Max))
		}
		switch {
		case x.Min != nil && y.Min != nil:
			r.Min = a.Simplify(expr.NewMax(x.Min, y.Min))
		case x.Min != nil:
			r.Min = x.Min
		case y.Min != nil:
			r.Min = y.Min
		}
		return r
	case *expr.Select:
		x, y := a.EvalInterval(n.Then, ivs), a.EvalInterval(n.Else, ivs)
		var r Interval
		if x.Min != nil && y.Min != nil {
			r.Min = a.Simplify(expr.NewMin(x.Min, y.Min))
		}
		if x.Max != nil && y.Max != nil {
			r.Max = a.Simplify(expr.NewMax(x.Max, y.Max))
		}
		return r
	}
	return FullInterval()
}

func (a *Analyzer) ivDiv(ea, eb expr.Expr, ivs IntervalMap, floor bool) Interval {
	b, ok := expr.ImmValue(eb)
	if !ok || b == 0 {
		return FullInterval()
	}
	opnd := a.EvalInterval(ea, ivs)
	// Division by a nonzero constant is monotone in the dividend under
	// both rounding conventions, so the endpoints map directly.
	mk := func(x expr.Expr) expr.Expr {
		d := expr.TypedImm(eb.DType(), b)
		if floor {
			return a.Simplify(expr.NewFloorDiv(x, d))
		}
		return a.Simplify(expr.NewDiv(x, d))
	}
	var r Interval
	if b > 0 {
		if opnd.Min != nil {
			r.Min = mk(opnd.Min)
		}
		if opnd.Max != nil {
			r.Max = mk(opnd.Max)
		}
	} else {
		if opnd.Max != nil {
			r.Min = mk(opnd.Max)
		}
		if opnd.Min != nil {
			r.Max = mk(opnd.Min)
		}
	}
	return r
}
