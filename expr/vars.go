package expr

// FreeVars returns the free variables of e in order of first occurrence.
func FreeVars(e Expr) []*Var {
	var out []*Var
	seen := make(map[*Var]bool)
	collectFree(e, nil, seen, &out)
	return out
}

// FreeVarsSet returns the free variables of e as a set.
func FreeVarsSet(e Expr) map[*Var]bool {
	var out []*Var
	seen := make(map[*Var]bool)
	collectFree(e, nil, seen, &out)
	return seen
}

func collectFree(e Expr, bound map[*Var]bool, seen map[*Var]bool, out *[]*Var) {
	switch n := e.(type) {
	case *Var:
		if !bound[n] && !seen[n] {
			seen[n] = true
			*out = append(*out, n)
		}
	case *Reduce:
		// axis bounds live in the enclosing scope
		for _, ax := range n.Axes {
			collectFree(ax.Range.Min, bound, seen, out)
			collectFree(ax.Range.Extent, bound, seen, out)
		}
		inner := make(map[*Var]bool, len(bound)+len(n.Axes))
		for v := range bound {
			inner[v] = true
		}
		for _, ax := range n.Axes {
			inner[ax.Var] = true
		}
		for _, s := range n.Source {
			collectFree(s, inner, seen, out)
		}
		collectFree(n.Condition, inner, seen, out)
	default:
		Walk(e, func(c Expr) bool {
			if c == e {
				return true
			}
			collectFree(c, bound, seen, out)
			return false
		})
	}
}

// ContainsVar reports whether v occurs free in e.
func ContainsVar(e Expr, v *Var) bool {
	return ContainsAnyVar(e, map[*Var]bool{v: true})
}

// ContainsAnyVar reports whether any variable of the set occurs free in e.
func ContainsAnyVar(e Expr, vars map[*Var]bool) bool {
	found := false
	var walk func(e Expr, bound map[*Var]bool)
	walk = func(e Expr, bound map[*Var]bool) {
		if found {
			return
		}
		switch n := e.(type) {
		case *Var:
			if vars[n] && !bound[n] {
				found = true
			}
		case *Reduce:
			for _, ax := range n.Axes {
				walk(ax.Range.Min, bound)
				walk(ax.Range.Extent, bound)
			}
			inner := make(map[*Var]bool, len(bound)+len(n.Axes))
			for v := range bound {
				inner[v] = true
			}
			for _, ax := range n.Axes {
				inner[ax.Var] = true
			}
			for _, s := range n.Source {
				walk(s, inner)
			}
			walk(n.Condition, inner)
		default:
			Walk(e, func(c Expr) bool {
				if c == e {
					return true
				}
				walk(c, bound)
				return false
			})
		}
	}
	walk(e, nil)
	return found
}
