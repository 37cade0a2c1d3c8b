package arith

import "github.com/sgrechanik-h/zeroelim/expr"

// Linearize tries to write e as sum(coefs[i]*vars[i]) + rest where
// rest does not mention any of vars. It reports failure when a target
// variable occurs non-linearly (inside a product of atoms, a division,
// a call) or when coefficient arithmetic overflows.
func (a *Analyzer) Linearize(e expr.Expr, vars []*expr.Var) (coefs []int64, rest expr.Expr, ok bool) {
	lf, ok := a.linOf(a.Simplify(e))
	if !ok {
		return nil, nil, false
	}
	idx := make(map[*expr.Var]int, len(vars))
	set := make(map[*expr.Var]bool, len(vars))
	for i, v := range vars {
		idx[v] = i
		set[v] = true
	}
	coefs = make([]int64, len(vars))
	restForm := &linForm{c: lf.c, t: lf.t}
	for _, t := range lf.terms {
		if v, isVar := t.atom.(*expr.Var); isVar {
			if i, tracked := idx[v]; tracked {
				var okc bool
				if coefs[i], okc = addOv(coefs[i], t.coef); !okc {
					return nil, nil, false
				}
				continue
			}
		}
		if expr.ContainsAnyVar(t.atom, set) {
			return nil, nil, false
		}
		restForm.terms = append(restForm.terms, t)
	}
	return coefs, restForm.build(), true
}

// LinearizeSingle is Linearize for one variable.
func (a *Analyzer) LinearizeSingle(e expr.Expr, v *expr.Var) (coef int64, rest expr.Expr, ok bool) {
	coefs, rest, ok := a.Linearize(e, []*expr.Var{v})
	if !ok {
		return 0, nil, false
	}
	return coefs[0], rest, true
}
