package expr

// Walk calls f on e and, if f returns true, recurses into e's children
// in evaluation order. Reduction axis bounds count as children; the
// combiner template does not, because its formal slots are a separate
// scope.
func Walk(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch n := e.(type) {
	case *Add:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Sub:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Mul:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Div:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Mod:
		Walk(n.A, f)
		Walk(n.B, f)
	case *FloorDiv:
		Walk(n.A, f)
		Walk(n.B, f)
	case *FloorMod:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Min:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Max:
		Walk(n.A, f)
		Walk(n.B, f)
	case *EQ:
		Walk(n.A, f)
		Walk(n.B, f)
	case *NE:
		Walk(n.A, f)
		Walk(n.B, f)
	case *LT:
		Walk(n.A, f)
		Walk(n.B, f)
	case *LE:
		Walk(n.A, f)
		Walk(n.B, f)
	case *GT:
		Walk(n.A, f)
		Walk(n.B, f)
	case *GE:
		Walk(n.A, f)
		Walk(n.B, f)
	case *And:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Or:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Not:
		Walk(n.A, f)
	case *Select:
		Walk(n.Cond, f)
		Walk(n.Then, f)
		Walk(n.Else, f)
	case *Cast:
		Walk(n.Value, f)
	case *Call:
		for _, a := range n.Args {
			Walk(a, f)
		}
	case *Reduce:
		for _, ax := range n.Axes {
			Walk(ax.Range.Min, f)
			Walk(ax.Range.Extent, f)
		}
		for _, s := range n.Source {
			Walk(s, f)
		}
		Walk(n.Condition, f)
	}
}

// MapChildren rebuilds e with every direct child c replaced by f(c),
// returning e itself when nothing changed. Reduction axis variables are
// binders and are not passed through f, but their range bounds are.
func MapChildren(e Expr, f func(Expr) Expr) Expr {
	bin := func(a, b Expr, mk func(x, y Expr) Expr) Expr {
		na, nb := f(a), f(b)
		if na == a && nb == b {
			return e
		}
		return mk(na, nb)
	}
	switch n := e.(type) {
	case *Add:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewAdd(x, y) })
	case *Sub:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewSub(x, y) })
	case *Mul:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewMul(x, y) })
	case *Div:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewDiv(x, y) })
	case *Mod:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewMod(x, y) })
	case *FloorDiv:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewFloorDiv(x, y) })
	case *FloorMod:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewFloorMod(x, y) })
	case *Min:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewMin(x, y) })
	case *Max:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewMax(x, y) })
	case *EQ:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewEQ(x, y) })
	case *NE:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewNE(x, y) })
	case *LT:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewLT(x, y) })
	case *LE:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewLE(x, y) })
	case *GT:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewGT(x, y) })
	case *GE:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewGE(x, y) })
	case *And:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewAnd(x, y) })
	case *Or:
		return bin(n.A, n.B, func(x, y Expr) Expr { return NewOr(x, y) })
	case *Not:
		na := f(n.A)
		if na == n.A {
			return e
		}
		return NewNot(na)
	case *Select:
		nc, nt, ne := f(n.Cond), f(n.Then), f(n.Else)
		if nc == n.Cond && nt == n.Then && ne == n.Else {
			return e
		}
		return NewSelect(nc, nt, ne)
	case *Cast:
		nv := f(n.Value)
		if nv == n.Value {
			return e
		}
		return NewCast(n.Type, nv)
	case *Call:
		var args []Expr
		for i, a := range n.Args {
			na := f(a)
			if args == nil && na != a {
				args = make([]Expr, len(n.Args))
				copy(args, n.Args[:i])
			}
			if args != nil {
				args[i] = na
			}
		}
		if args == nil {
			return e
		}
		return NewCall(n.Type, n.Name, n.Tensor, args, n.ValueIndex)
	case *Reduce:
		changed := false
		axes := make([]*IterVar, len(n.Axes))
		for i, ax := range n.Axes {
			nmin, next := f(ax.Range.Min), f(ax.Range.Extent)
			if nmin != ax.Range.Min || next != ax.Range.Extent {
				changed = true
				axes[i] = &IterVar{Var: ax.Var, Range: Range{Min: nmin, Extent: next}}
			} else {
				axes[i] = ax
			}
		}
		source := make([]Expr, len(n.Source))
		for i, s := range n.Source {
			source[i] = f(s)
			if source[i] != s {
				changed = true
			}
		}
		cond := f(n.Condition)
		if cond != n.Condition {
			changed = true
		}
		if !changed {
			return e
		}
		return NewReduce(n.Combiner, source, axes, cond, n.ValueIndex)
	default:
		return e
	}
}
