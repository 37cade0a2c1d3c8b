package expr

// Substitute replaces free occurrences of the keys of m in e. Reduction
// axis variables are binders: entries shadowed by an axis do not reach
// the reduction body.
func Substitute(e Expr, m map[*Var]Expr) Expr {
	if len(m) == 0 {
		return e
	}
	return substitute(e, m)
}

func substitute(e Expr, m map[*Var]Expr) Expr {
	switch n := e.(type) {
	case *Var:
		if r, ok := m[n]; ok {
			return r
		}
		return e
	case *IntImm, *FloatImm, *BoolImm:
		return e
	case *Reduce:
		inner := m
		for _, ax := range n.Axes {
			if _, ok := m[ax.Var]; ok {
				inner = make(map[*Var]Expr, len(m))
				for k, v := range m {
					inner[k] = v
				}
				for _, a := range n.Axes {
					delete(inner, a.Var)
				}
				break
			}
		}
		if len(inner) == 0 {
			return e
		}
		return MapChildren(e, func(c Expr) Expr { return substitute(c, inner) })
	default:
		return MapChildren(e, func(c Expr) Expr { return substitute(c, m) })
	}
}

// SubstituteInRange applies Substitute to both bounds of a range.
func SubstituteInRange(r Range, m map[*Var]Expr) Range {
	return Range{Min: Substitute(r.Min, m), Extent: Substitute(r.Extent, m)}
}

// CloneReduction returns a copy of a reduction with fresh axis
// variables, so that inlining the same reduction twice never aliases
// iteration state. Non-reductions are returned unchanged.
func CloneReduction(e Expr) Expr {
	red, ok := e.(*Reduce)
	if !ok {
		return e
	}
	m := make(map[*Var]Expr, len(red.Axes))
	axes := make([]*IterVar, len(red.Axes))
	for i, ax := range red.Axes {
		fresh := NewTypedVar(ax.Var.Name, ax.Var.Type)
		axes[i] = &IterVar{Var: fresh, Range: SubstituteInRange(ax.Range, m)}
		m[ax.Var] = fresh
	}
	source := make([]Expr, len(red.Source))
	for i, s := range red.Source {
		source[i] = Substitute(s, m)
	}
	return NewReduce(red.Combiner, source, axes, Substitute(red.Condition, m), red.ValueIndex)
}
