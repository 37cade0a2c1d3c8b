package arith

import (
	"math"
	"sort"

	"github.com/sgrechanik-h/zeroelim/expr"
)

// linTerm is coef*atom. An atom is a canonical integer expression that
// is not an IntImm, Add, Sub or constant-foldable Mul; products of
// atoms are kept as a single Mul atom with sorted factors.
type linTerm struct {
	coef int64
	atom expr.Expr
}

// linForm is the linear normal form c + sum(coef_i * atom_i) with
// atoms sorted by expr.Compare and pairwise distinct, zero coefficients
// dropped. All arithmetic on coefficients is overflow-checked; an
// operation that would overflow reports failure and the caller keeps
// the original tree instead.
type linForm struct {
	terms []linTerm
	c     int64
	t     expr.DType
}

func addOv(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

func mulOv(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a == math.MinInt64 || b == math.MinInt64 {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

func gcd64(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	g := gcd64(a, b)
	return mulOv(a/g, b)
}

// floorDiv and floorMod implement floor division on int64, matching
// the FloorDiv/FloorMod nodes. b must be nonzero.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// mulFactors flattens the multiplicative factors of an atom.
func mulFactors(e expr.Expr, out []expr.Expr) []expr.Expr {
	if m, ok := e.(*expr.Mul); ok {
		out = mulFactors(m.A, out)
		return mulFactors(m.B, out)
	}
	return append(out, e)
}

// mulAtoms multiplies two atoms into a canonical product atom: the
// combined factor list is sorted and rebuilt left-associatively.
func mulAtoms(x, y expr.Expr) expr.Expr {
	fs := mulFactors(x, nil)
	fs = mulFactors(y, fs)
	expr.SortExprs(fs)
	res := fs[0]
	for _, f := range fs[1:] {
		res = expr.NewMul(res, f)
	}
	return res
}

// normTerms sorts terms by atom and coalesces equal atoms, dropping
// zero coefficients. Reports failure on coefficient overflow.
func normTerms(ts []linTerm) ([]linTerm, bool) {
	sort.SliceStable(ts, func(i, j int) bool {
		return expr.Compare(ts[i].atom, ts[j].atom) < 0
	})
	out := ts[:0]
	for _, t := range ts {
		if len(out) > 0 && expr.Equal(out[len(out)-1].atom, t.atom) {
			s, ok := addOv(out[len(out)-1].coef, t.coef)
			if !ok {
				return nil, false
			}
			out[len(out)-1].coef = s
			continue
		}
		out = append(out, t)
	}
	res := out[:0]
	for _, t := range out {
		if t.coef != 0 {
			res = append(res, t)
		}
	}
	return res, true
}

func (lf *linForm) add(o *linForm, sign int64) bool {
	terms := make([]linTerm, 0, len(lf.terms)+len(o.terms))
	terms = append(terms, lf.terms...)
	for _, t := range o.terms {
		c, ok := mulOv(t.coef, sign)
		if !ok {
			return false
		}
		terms = append(terms, linTerm{c, t.atom})
	}
	var ok bool
	if terms, ok = normTerms(terms); !ok {
		return false
	}
	oc, ok := mulOv(o.c, sign)
	if !ok {
		return false
	}
	c, ok := addOv(lf.c, oc)
	if !ok {
		return false
	}
	lf.terms, lf.c = terms, c
	lf.t = expr.Promote(lf.t, o.t)
	return true
}

func (lf *linForm) scale(k int64) bool {
	if k == 0 {
		lf.terms, lf.c = nil, 0
		return true
	}
	for i := range lf.terms {
		c, ok := mulOv(lf.terms[i].coef, k)
		if !ok {
			return false
		}
		lf.terms[i].coef = c
	}
	c, ok := mulOv(lf.c, k)
	if !ok {
		return false
	}
	lf.c = c
	return true
}

func mulLin(x, y *linForm) (*linForm, bool) {
	res := &linForm{t: expr.Promote(x.t, y.t)}
	terms := make([]linTerm, 0, len(x.terms)+len(y.terms)+len(x.terms)*len(y.terms))
	for _, t := range x.terms {
		c, ok := mulOv(t.coef, y.c)
		if !ok {
			return nil, false
		}
		terms = append(terms, linTerm{c, t.atom})
	}
	for _, t := range y.terms {
		c, ok := mulOv(t.coef, x.c)
		if !ok {
			return nil, false
		}
		terms = append(terms, linTerm{c, t.atom})
	}
	for _, tx := range x.terms {
		for _, ty := range y.terms {
			c, ok := mulOv(tx.coef, ty.coef)
			if !ok {
				return nil, false
			}
			terms = append(terms, linTerm{c, mulAtoms(tx.atom, ty.atom)})
		}
	}
	var ok bool
	if terms, ok = normTerms(terms); !ok {
		return nil, false
	}
	c, ok := mulOv(x.c, y.c)
	if !ok {
		return nil, false
	}
	res.terms, res.c = terms, c
	return res, true
}

// linOf decomposes an already-simplified integer expression into
// linear normal form. It never fails structurally: any node that is
// not Add, Sub, Mul or IntImm becomes an atom. Failure means
// coefficient overflow.
func (a *Analyzer) linOf(e expr.Expr) (*linForm, bool) {
	switch n := e.(type) {
	case *expr.IntImm:
		return &linForm{c: n.Value, t: n.Type}, true
	case *expr.Add:
		x, ok := a.linOf(n.A)
		if !ok {
			return nil, false
		}
		y, ok := a.linOf(n.B)
		if !ok {
			return nil, false
		}
		if !x.add(y, 1) {
			return nil, false
		}
		return x, true
	case *expr.Sub:
		x, ok := a.linOf(n.A)
		if !ok {
			return nil, false
		}
		y, ok := a.linOf(n.B)
		if !ok {
			return nil, false
		}
		if !x.add(y, -1) {
			return nil, false
		}
		return x, true
	case *expr.Mul:
		x, ok := a.linOf(n.A)
		if !ok {
			return nil, false
		}
		y, ok := a.linOf(n.B)
		if !ok {
			return nil, false
		}
		if len(x.terms) == 0 {
			if !y.scale(x.c) {
				return nil, false
			}
			y.t = expr.Promote(x.t, y.t)
			return y, true
		}
		if len(y.terms) == 0 {
			if !x.scale(y.c) {
				return nil, false
			}
			x.t = expr.Promote(x.t, y.t)
			return x, true
		}
		return mulLin(x, y)
	default:
		return &linForm{terms: []linTerm{{1, e}}, t: e.DType()}, true
	}
}

func (lf *linForm) imm(v int64) expr.Expr {
	t := lf.t
	if !t.IsInt() {
		t = expr.Int32
	}
	return expr.TypedImm(t, v)
}

func (lf *linForm) termExpr(t linTerm) expr.Expr {
	if t.coef == 1 {
		return t.atom
	}
	return expr.NewMul(t.atom, lf.imm(t.coef))
}

func (lf *linForm) subTerm(res expr.Expr, t linTerm) expr.Expr {
	if t.coef == math.MinInt64 {
		return expr.NewAdd(res, lf.termExpr(t))
	}
	return expr.NewSub(res, lf.termExpr(linTerm{-t.coef, t.atom}))
}

// build renders the form back into an expression tree. The shape is
// deterministic: positive terms in atom order joined with Add, then
// negative terms with Sub, the constant last. A form with only
// negative terms and a positive constant starts from the constant, so
// 3-i renders as written instead of i*-1+3.
func (lf *linForm) build() expr.Expr {
	var res expr.Expr
	for _, t := range lf.terms {
		if t.coef > 0 {
			if res == nil {
				res = lf.termExpr(t)
			} else {
				res = expr.NewAdd(res, lf.termExpr(t))
			}
		}
	}
	if res == nil && lf.c > 0 {
		res = lf.imm(lf.c)
		for _, t := range lf.terms {
			if t.coef < 0 {
				res = lf.subTerm(res, t)
			}
		}
		return res
	}
	for _, t := range lf.terms {
		if t.coef < 0 {
			if res == nil {
				res = lf.termExpr(t)
			} else {
				res = lf.subTerm(res, t)
			}
		}
	}
	if res == nil {
		return lf.imm(lf.c)
	}
	switch {
	case lf.c > 0 || lf.c == math.MinInt64:
		res = expr.NewAdd(res, lf.imm(lf.c))
	case lf.c < 0:
		res = expr.NewSub(res, lf.imm(-lf.c))
	}
	return res
}

// divisible reports whether every coefficient and the constant are
// divisible by b.
func (lf *linForm) divisible(b int64) bool {
	if lf.c%b != 0 {
		return false
	}
	for _, t := range lf.terms {
		if t.coef%b != 0 {
			return false
		}
	}
	return true
}

// coefGCD returns the gcd of all term coefficients, 0 for a constant
// form.
func (lf *linForm) coefGCD() int64 {
	var g int64
	for _, t := range lf.terms {
		g = gcd64(g, t.coef)
	}
	return g
}
