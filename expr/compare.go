package expr

import (
	"math"
	"sort"
	"strings"
)

// Equal reports deep structural equality. Variables are equal only if
// they are the same node; there is no implicit alpha-equivalence, two
// reductions over different axis variables are different expressions
// even if they compute the same value.
func Equal(a, b Expr) bool { return Compare(a, b) == 0 }

// Compare defines a deterministic total order on expressions: first by
// node kind, then by fields left to right. Variables order by name and
// then by creation sequence, so the order is stable within a process.
// The canonicalizer uses this order to sort commutative operands.
func Compare(a, b Expr) int {
	if a == b {
		return 0
	}
	if a == nil || b == nil {
		if a == nil {
			return -1
		}
		return 1
	}
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return int(ka) - int(kb)
	}
	switch x := a.(type) {
	case *Var:
		y := b.(*Var)
		if c := strings.Compare(x.Name, y.Name); c != 0 {
			return c
		}
		return cmpU64(x.seq, y.seq)
	case *IntImm:
		y := b.(*IntImm)
		if x.Type != y.Type {
			return int(x.Type) - int(y.Type)
		}
		return cmpI64(x.Value, y.Value)
	case *FloatImm:
		y := b.(*FloatImm)
		if x.Type != y.Type {
			return int(x.Type) - int(y.Type)
		}
		switch {
		case x.Value < y.Value:
			return -1
		case x.Value > y.Value:
			return 1
		}
		return 0
	case *BoolImm:
		y := b.(*BoolImm)
		switch {
		case !x.Value && y.Value:
			return -1
		case x.Value && !y.Value:
			return 1
		}
		return 0
	case *Not:
		return Compare(x.A, b.(*Not).A)
	case *Select:
		y := b.(*Select)
		if c := Compare(x.Cond, y.Cond); c != 0 {
			return c
		}
		if c := Compare(x.Then, y.Then); c != 0 {
			return c
		}
		return Compare(x.Else, y.Else)
	case *Cast:
		y := b.(*Cast)
		if x.Type != y.Type {
			return int(x.Type) - int(y.Type)
		}
		return Compare(x.Value, y.Value)
	case *Call:
		y := b.(*Call)
		if c := strings.Compare(x.Name, y.Name); c != 0 {
			return c
		}
		if x.Tensor != y.Tensor {
			return int(x.Tensor) - int(y.Tensor)
		}
		if x.ValueIndex != y.ValueIndex {
			return x.ValueIndex - y.ValueIndex
		}
		return cmpList(x.Args, y.Args)
	case *Reduce:
		y := b.(*Reduce)
		if c := compareCombiner(x.Combiner, y.Combiner); c != 0 {
			return c
		}
		if x.ValueIndex != y.ValueIndex {
			return x.ValueIndex - y.ValueIndex
		}
		if len(x.Axes) != len(y.Axes) {
			return len(x.Axes) - len(y.Axes)
		}
		for i := range x.Axes {
			if c := Compare(x.Axes[i].Var, y.Axes[i].Var); c != 0 {
				return c
			}
			if c := Compare(x.Axes[i].Range.Min, y.Axes[i].Range.Min); c != 0 {
				return c
			}
			if c := Compare(x.Axes[i].Range.Extent, y.Axes[i].Range.Extent); c != 0 {
				return c
			}
		}
		if c := cmpList(x.Source, y.Source); c != 0 {
			return c
		}
		return Compare(x.Condition, y.Condition)
	default:
		la, lb := operands(a), operands(b)
		return cmpList(la, lb)
	}
}

func compareCombiner(a, b *Combiner) int {
	if a == b {
		return 0
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if a.Arity() != b.Arity() {
		return a.Arity() - b.Arity()
	}
	for i := range a.Lhs {
		if c := Compare(a.Lhs[i], b.Lhs[i]); c != 0 {
			return c
		}
		if c := Compare(a.Rhs[i], b.Rhs[i]); c != 0 {
			return c
		}
		if c := Compare(a.Result[i], b.Result[i]); c != 0 {
			return c
		}
		if c := Compare(a.Identity[i], b.Identity[i]); c != 0 {
			return c
		}
	}
	return 0
}

// operands returns the two operands of a binary node.
func operands(e Expr) []Expr {
	switch n := e.(type) {
	case *Add:
		return []Expr{n.A, n.B}
	case *Sub:
		return []Expr{n.A, n.B}
	case *Mul:
		return []Expr{n.A, n.B}
	case *Div:
		return []Expr{n.A, n.B}
	case *Mod:
		return []Expr{n.A, n.B}
	case *FloorDiv:
		return []Expr{n.A, n.B}
	case *FloorMod:
		return []Expr{n.A, n.B}
	case *Min:
		return []Expr{n.A, n.B}
	case *Max:
		return []Expr{n.A, n.B}
	case *EQ:
		return []Expr{n.A, n.B}
	case *NE:
		return []Expr{n.A, n.B}
	case *LT:
		return []Expr{n.A, n.B}
	case *LE:
		return []Expr{n.A, n.B}
	case *GT:
		return []Expr{n.A, n.B}
	case *GE:
		return []Expr{n.A, n.B}
	case *And:
		return []Expr{n.A, n.B}
	case *Or:
		return []Expr{n.A, n.B}
	}
	return nil
}

func cmpList(a, b []Expr) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	for i := range a {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func kindOf(e Expr) uint8 {
	switch e.(type) {
	case *Var:
		return 0
	case *IntImm:
		return 1
	case *FloatImm:
		return 2
	case *BoolImm:
		return 3
	case *Add:
		return 4
	case *Sub:
		return 5
	case *Mul:
		return 6
	case *Div:
		return 7
	case *Mod:
		return 8
	case *FloorDiv:
		return 9
	case *FloorMod:
		return 10
	case *Min:
		return 11
	case *Max:
		return 12
	case *EQ:
		return 13
	case *NE:
		return 14
	case *LT:
		return 15
	case *LE:
		return 16
	case *GT:
		return 17
	case *GE:
		return 18
	case *And:
		return 19
	case *Or:
		return 20
	case *Not:
		return 21
	case *Select:
		return 22
	case *Cast:
		return 23
	case *Call:
		return 24
	case *Reduce:
		return 25
	}
	return 255
}

// Hash returns a structural hash consistent with Equal.
func Hash(e Expr) uint64 {
	h := uint64(17)
	h = h*23 + uint64(kindOf(e))
	switch n := e.(type) {
	case *Var:
		h = h*23 + n.seq
	case *IntImm:
		h = h*23 + uint64(n.Type)
		h = h*23 + uint64(n.Value)
	case *FloatImm:
		h = h*23 + uint64(n.Type)
		h = h*23 + math.Float64bits(n.Value)
	case *BoolImm:
		if n.Value {
			h = h*23 + 1
		}
	case *Not:
		h = h*23 + Hash(n.A)
	case *Select:
		h = h*23 + Hash(n.Cond)
		h = h*23 + Hash(n.Then)
		h = h*23 + Hash(n.Else)
	case *Cast:
		h = h*23 + uint64(n.Type)
		h = h*23 + Hash(n.Value)
	case *Call:
		h = h*23 + uint64(n.Tensor)*998244353
		h = h*23 + uint64(n.ValueIndex)
		for _, a := range n.Args {
			h = h*23 + Hash(a)
		}
	case *Reduce:
		h = h*23 + uint64(n.ValueIndex)
		for _, ax := range n.Axes {
			h = h*23 + Hash(ax.Var)
			h = h*23 + Hash(ax.Range.Min)
			h = h*23 + Hash(ax.Range.Extent)
		}
		for _, s := range n.Source {
			h = h*23 + Hash(s)
		}
		h = h*23 + Hash(n.Condition)
	default:
		for _, op := range operands(e) {
			h = h*23 + Hash(op)
		}
	}
	return h
}

// SortExprs sorts a slice of expressions into the canonical order.
func SortExprs(es []Expr) {
	sort.Slice(es, func(i, j int) bool { return Compare(es[i], es[j]) < 0 })
}
