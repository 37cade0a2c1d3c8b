package expr

import "fmt"

// Combiner describes a commutative reduction operator as data: Result
// is the combine template over the formal slots Lhs and Rhs, Identity
// is the identity tuple. Multi-slot combiners express tuple reductions
// (argmax-style pairs, derivative pairs); a Reduce node picks one slot
// with its ValueIndex.
//
// The algebraic requirements (commutativity, associativity, identity)
// are the caller's responsibility; NewCombiner only checks the shape.
type Combiner struct {
	Name     string
	Lhs      []*Var
	Rhs      []*Var
	Result   []Expr
	Identity []Expr
}

// NewCombiner validates the shape of a combiner: matching slot counts,
// distinct formal variables and consistent slot dtypes.
func NewCombiner(name string, lhs, rhs []*Var, result, identity []Expr) (*Combiner, error) {
	n := len(result)
	if n == 0 {
		return nil, fmt.Errorf("combiner %q: empty result tuple", name)
	}
	if len(lhs) != n || len(rhs) != n || len(identity) != n {
		return nil, fmt.Errorf("combiner %q: slot counts differ: lhs %d, rhs %d, result %d, identity %d",
			name, len(lhs), len(rhs), n, len(identity))
	}
	seen := make(map[*Var]bool, 2*n)
	for _, v := range lhs {
		if seen[v] {
			return nil, fmt.Errorf("combiner %q: formal variable %s repeated", name, v.Name)
		}
		seen[v] = true
	}
	for _, v := range rhs {
		if seen[v] {
			return nil, fmt.Errorf("combiner %q: formal variable %s repeated", name, v.Name)
		}
		seen[v] = true
	}
	for i := 0; i < n; i++ {
		if lhs[i].DType() != rhs[i].DType() {
			return nil, fmt.Errorf("combiner %q: slot %d: lhs is %v, rhs is %v",
				name, i, lhs[i].DType(), rhs[i].DType())
		}
		if result[i].DType() != lhs[i].DType() {
			return nil, fmt.Errorf("combiner %q: slot %d: result is %v, formals are %v",
				name, i, result[i].DType(), lhs[i].DType())
		}
		if identity[i].DType() != lhs[i].DType() {
			return nil, fmt.Errorf("combiner %q: slot %d: identity is %v, formals are %v",
				name, i, identity[i].DType(), lhs[i].DType())
		}
	}
	return &Combiner{Name: name, Lhs: lhs, Rhs: rhs, Result: result, Identity: identity}, nil
}

// Arity is the number of slots the combiner reduces in parallel.
func (c *Combiner) Arity() int { return len(c.Result) }

// SumCombiner is the single-slot sum with identity 0 over type t.
func SumCombiner(t DType) *Combiner {
	x := NewTypedVar("x", t)
	y := NewTypedVar("y", t)
	return &Combiner{
		Name:     "sum",
		Lhs:      []*Var{x},
		Rhs:      []*Var{y},
		Result:   []Expr{NewAdd(x, y)},
		Identity: []Expr{Zero(t)},
	}
}

// ProdCombiner is the single-slot product with identity 1 over type t.
func ProdCombiner(t DType) *Combiner {
	x := NewTypedVar("x", t)
	y := NewTypedVar("y", t)
	return &Combiner{
		Name:     "prod",
		Lhs:      []*Var{x},
		Rhs:      []*Var{y},
		Result:   []Expr{NewMul(x, y)},
		Identity: []Expr{One(t)},
	}
}
