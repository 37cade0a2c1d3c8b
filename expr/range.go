package expr

// Range is a half-open interval [Min, Min+Extent) with symbolic bounds.
type Range struct {
	Min    Expr
	Extent Expr
}

// ConstRange builds a range with constant bounds.
func ConstRange(min, extent int64) Range {
	return Range{Min: Imm(min), Extent: Imm(extent)}
}

// MaxValue is Min+Extent-1, the largest value inside the range, in
// unsimplified form.
func (r Range) MaxValue() Expr {
	return NewSub(NewAdd(r.Min, r.Extent), One(r.Min.DType()))
}

// IterVar is a variable bound to a range, used for reduction axes and
// tensor output axes.
type IterVar struct {
	Var   *Var
	Range Range
}

// NewIterVar creates a fresh iteration variable over [min, min+extent).
func NewIterVar(name string, min, extent int64) *IterVar {
	return &IterVar{Var: NewVar(name), Range: ConstRange(min, extent)}
}

// NewIterVarRange creates a fresh iteration variable over r.
func NewIterVarRange(name string, r Range) *IterVar {
	return &IterVar{Var: NewVar(name), Range: r}
}

// Ranges maps variables to the ranges they are known to lie in. It is
// the environment threaded through every pass.
type Ranges map[*Var]Range

// Clone returns a shallow copy.
func (r Ranges) Clone() Ranges {
	out := make(Ranges, len(r))
	for v, rng := range r {
		out[v] = rng
	}
	return out
}

// Extend returns a copy of r with the entries of o added, o winning on
// conflicts. Either argument may be nil.
func (r Ranges) Extend(o Ranges) Ranges {
	out := make(Ranges, len(r)+len(o))
	for v, rng := range r {
		out[v] = rng
	}
	for v, rng := range o {
		out[v] = rng
	}
	return out
}

// AxisVars projects the variables out of a list of iteration variables.
func AxisVars(axes []*IterVar) []*Var {
	vars := make([]*Var, len(axes))
	for i, ax := range axes {
		vars[i] = ax.Var
	}
	return vars
}

// AxisRanges collects the ranges of a list of iteration variables.
func AxisRanges(axes []*IterVar) Ranges {
	out := make(Ranges, len(axes))
	for _, ax := range axes {
		out[ax.Var] = ax.Range
	}
	return out
}
