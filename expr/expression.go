// Package expr defines the symbolic expression tree that the
// zero-elimination passes operate on: a closed set of node types for
// integer/float/bool arithmetic, comparisons, conditionals, casts,
// tensor calls and commutative reductions. Nodes are immutable after
// construction; passes rebuild subtrees instead of mutating them, so
// sharing a node between two expressions is always safe.
package expr

import (
	"fmt"
	"sync/atomic"
)

// TensorID identifies a tensor by its creation index in a Program.
// Calls reference tensors by id rather than by pointer so that
// expression trees stay self-contained and programs stay acyclic by
// construction (a tensor body may only call smaller ids).
type TensorID int

// Expr is the closed sum type of expression nodes.
type Expr interface {
	DType() DType
	String() string
	node()
}

// Var is a free variable. Identity is the node pointer: two variables
// with the same name are still different variables. Every Var gets a
// process-unique sequence number so sorting expressions is
// deterministic within a run.
type Var struct {
	Name string
	Type DType
	seq  uint64
}

var varSeq atomic.Uint64

// NewVar creates a fresh int32 variable.
func NewVar(name string) *Var { return NewTypedVar(name, Int32) }

// NewTypedVar creates a fresh variable of the given type.
func NewTypedVar(name string, t DType) *Var {
	return &Var{Name: name, Type: t, seq: varSeq.Add(1)}
}

func (v *Var) DType() DType { return v.Type }

// IntImm is an integer constant.
type IntImm struct {
	Type  DType
	Value int64
}

// FloatImm is a floating point constant.
type FloatImm struct {
	Type  DType
	Value float64
}

// BoolImm is a boolean constant.
type BoolImm struct {
	Value bool
}

// Imm returns an int32 constant.
func Imm(v int64) *IntImm { return &IntImm{Type: Int32, Value: v} }

// TypedImm returns an integer constant of the given integer type.
func TypedImm(t DType, v int64) *IntImm {
	if !t.IsInt() {
		panic(fmt.Sprintf("expr: TypedImm with non-integer type %v", t))
	}
	return &IntImm{Type: t, Value: v}
}

// FImm returns a float32 constant.
func FImm(v float64) *FloatImm { return &FloatImm{Type: Float32, Value: v} }

// BImm returns a boolean constant.
func BImm(v bool) *BoolImm { return &BoolImm{Value: v} }

// Zero returns the zero value of type t.
func Zero(t DType) Expr {
	switch {
	case t == Bool:
		return BImm(false)
	case t.IsFloat():
		return &FloatImm{Type: t, Value: 0}
	default:
		return &IntImm{Type: t, Value: 0}
	}
}

// One returns the unit value of type t.
func One(t DType) Expr {
	switch {
	case t == Bool:
		return BImm(true)
	case t.IsFloat():
		return &FloatImm{Type: t, Value: 1}
	default:
		return &IntImm{Type: t, Value: 1}
	}
}

// Binary arithmetic nodes. Constructors unify the operand types, so
// after construction A and B always have the same dtype.
type (
	Add      struct{ A, B Expr }
	Sub      struct{ A, B Expr }
	Mul      struct{ A, B Expr }
	Div      struct{ A, B Expr } // truncated integer division, ordinary division on floats
	Mod      struct{ A, B Expr } // truncated remainder, sign follows the dividend
	FloorDiv struct{ A, B Expr }
	FloorMod struct{ A, B Expr }
	Min      struct{ A, B Expr }
	Max      struct{ A, B Expr }
)

// Comparison nodes, always of type Bool.
type (
	EQ struct{ A, B Expr }
	NE struct{ A, B Expr }
	LT struct{ A, B Expr }
	LE struct{ A, B Expr }
	GT struct{ A, B Expr }
	GE struct{ A, B Expr }
)

// Boolean connectives.
type (
	And struct{ A, B Expr }
	Or  struct{ A, B Expr }
	Not struct{ A Expr }
)

// Select is a lazy conditional: only the taken branch is considered
// evaluated, which is what makes guarding division and recursion safe.
type Select struct {
	Cond, Then, Else Expr
}

// Cast converts a value to another dtype.
type Cast struct {
	Type  DType
	Value Expr
}

// Call references one output of a tensor at the given index arguments.
type Call struct {
	Type       DType
	Name       string
	Tensor     TensorID
	Args       []Expr
	ValueIndex int
}

// Reduce combines the source tuple over the product of the axis ranges,
// restricted to the points where Condition holds, using Combiner.
// ValueIndex selects which slot of the tuple this node evaluates to.
type Reduce struct {
	Combiner   *Combiner
	Source     []Expr
	Axes       []*IterVar
	Condition  Expr
	ValueIndex int
}

func (e *IntImm) DType() DType   { return e.Type }
func (e *FloatImm) DType() DType { return e.Type }
func (e *BoolImm) DType() DType  { return Bool }

func (e *Add) DType() DType      { return e.A.DType() }
func (e *Sub) DType() DType      { return e.A.DType() }
func (e *Mul) DType() DType      { return e.A.DType() }
func (e *Div) DType() DType      { return e.A.DType() }
func (e *Mod) DType() DType      { return e.A.DType() }
func (e *FloorDiv) DType() DType { return e.A.DType() }
func (e *FloorMod) DType() DType { return e.A.DType() }
func (e *Min) DType() DType      { return e.A.DType() }
func (e *Max) DType() DType      { return e.A.DType() }

func (e *EQ) DType() DType { return Bool }
func (e *NE) DType() DType { return Bool }
func (e *LT) DType() DType { return Bool }
func (e *LE) DType() DType { return Bool }
func (e *GT) DType() DType { return Bool }
func (e *GE) DType() DType { return Bool }

func (e *And) DType() DType { return Bool }
func (e *Or) DType() DType  { return Bool }
func (e *Not) DType() DType { return Bool }

func (e *Select) DType() DType { return e.Then.DType() }
func (e *Cast) DType() DType   { return e.Type }
func (e *Call) DType() DType   { return e.Type }
func (e *Reduce) DType() DType { return e.Source[e.ValueIndex].DType() }

func (*Var) node()      {}
func (*IntImm) node()   {}
func (*FloatImm) node() {}
func (*BoolImm) node()  {}
func (*Add) node()      {}
func (*Sub) node()      {}
func (*Mul) node()      {}
func (*Div) node()      {}
func (*Mod) node()      {}
func (*FloorDiv) node() {}
func (*FloorMod) node() {}
func (*Min) node()      {}
func (*Max) node()      {}
func (*EQ) node()       {}
func (*NE) node()       {}
func (*LT) node()       {}
func (*LE) node()       {}
func (*GT) node()       {}
func (*GE) node()       {}
func (*And) node()      {}
func (*Or) node()       {}
func (*Not) node()      {}
func (*Select) node()   {}
func (*Cast) node()     {}
func (*Call) node()     {}
func (*Reduce) node()   {}

// unify casts a and b to their common type.
func unify(a, b Expr) (Expr, Expr) {
	ta, tb := a.DType(), b.DType()
	if ta == tb {
		return a, b
	}
	t := Promote(ta, tb)
	return NewCast(t, a), NewCast(t, b)
}

func NewAdd(a, b Expr) *Add { a, b = unify(a, b); return &Add{a, b} }
func NewSub(a, b Expr) *Sub { a, b = unify(a, b); return &Sub{a, b} }
func NewMul(a, b Expr) *Mul { a, b = unify(a, b); return &Mul{a, b} }

func NewDiv(a, b Expr) *Div { a, b = unify(a, b); return &Div{a, b} }

func NewMod(a, b Expr) *Mod {
	a, b = unify(a, b)
	if !a.DType().IsInt() {
		panic("expr: Mod requires integer operands")
	}
	return &Mod{a, b}
}

func NewFloorDiv(a, b Expr) *FloorDiv {
	a, b = unify(a, b)
	if !a.DType().IsInt() {
		panic("expr: FloorDiv requires integer operands")
	}
	return &FloorDiv{a, b}
}

func NewFloorMod(a, b Expr) *FloorMod {
	a, b = unify(a, b)
	if !a.DType().IsInt() {
		panic("expr: FloorMod requires integer operands")
	}
	return &FloorMod{a, b}
}

func NewMin(a, b Expr) *Min { a, b = unify(a, b); return &Min{a, b} }
func NewMax(a, b Expr) *Max { a, b = unify(a, b); return &Max{a, b} }

func NewEQ(a, b Expr) *EQ { a, b = unify(a, b); return &EQ{a, b} }
func NewNE(a, b Expr) *NE { a, b = unify(a, b); return &NE{a, b} }
func NewLT(a, b Expr) *LT { a, b = unify(a, b); return &LT{a, b} }
func NewLE(a, b Expr) *LE { a, b = unify(a, b); return &LE{a, b} }
func NewGT(a, b Expr) *GT { a, b = unify(a, b); return &GT{a, b} }
func NewGE(a, b Expr) *GE { a, b = unify(a, b); return &GE{a, b} }

func NewAnd(a, b Expr) *And { return &And{a, b} }
func NewOr(a, b Expr) *Or   { return &Or{a, b} }
func NewNot(a Expr) *Not    { return &Not{a} }

// AndAll conjoins the given conditions; an empty list is true.
func AndAll(conds ...Expr) Expr {
	var res Expr
	for _, c := range conds {
		if c == nil {
			continue
		}
		if res == nil {
			res = c
		} else {
			res = NewAnd(res, c)
		}
	}
	if res == nil {
		return BImm(true)
	}
	return res
}

func NewSelect(cond, then, els Expr) *Select {
	then, els = unify(then, els)
	return &Select{Cond: cond, Then: then, Else: els}
}

// SelectElseZero is select(cond, value, 0), the canonical shape produced
// by nonzeroness lifting.
func SelectElseZero(cond, value Expr) *Select {
	return NewSelect(cond, value, Zero(value.DType()))
}

// NewCast converts e to type t, folding constants on the spot and
// collapsing no-op casts.
func NewCast(t DType, e Expr) Expr {
	if e.DType() == t {
		return e
	}
	switch imm := e.(type) {
	case *IntImm:
		switch {
		case t == Bool:
			return BImm(imm.Value != 0)
		case t.IsFloat():
			return &FloatImm{Type: t, Value: float64(imm.Value)}
		default:
			return &IntImm{Type: t, Value: imm.Value}
		}
	case *FloatImm:
		if t.IsFloat() {
			return &FloatImm{Type: t, Value: imm.Value}
		}
		if t.IsInt() {
			return &IntImm{Type: t, Value: int64(imm.Value)}
		}
	case *BoolImm:
		v := int64(0)
		if imm.Value {
			v = 1
		}
		if t.IsFloat() {
			return &FloatImm{Type: t, Value: float64(v)}
		}
		if t.IsInt() {
			return &IntImm{Type: t, Value: v}
		}
	}
	return &Cast{Type: t, Value: e}
}

// NewCall builds a reference to output valueIndex of the given tensor.
func NewCall(t DType, name string, id TensorID, args []Expr, valueIndex int) *Call {
	return &Call{Type: t, Name: name, Tensor: id, Args: args, ValueIndex: valueIndex}
}

// NewReduce builds a reduction. A nil condition means true. The source
// tuple length must match the combiner arity.
func NewReduce(c *Combiner, source []Expr, axes []*IterVar, cond Expr, valueIndex int) *Reduce {
	if len(source) != c.Arity() {
		panic(fmt.Sprintf("expr: reduction source arity %d does not match combiner %q arity %d",
			len(source), c.Name, c.Arity()))
	}
	if valueIndex < 0 || valueIndex >= len(source) {
		panic(fmt.Sprintf("expr: reduction value index %d out of range", valueIndex))
	}
	if cond == nil {
		cond = BImm(true)
	}
	return &Reduce{Combiner: c, Source: source, Axes: axes, Condition: cond, ValueIndex: valueIndex}
}

// ImmValue extracts the value of an integer constant.
func ImmValue(e Expr) (int64, bool) {
	if imm, ok := e.(*IntImm); ok {
		return imm.Value, true
	}
	return 0, false
}

// IsConstInt reports whether e is the integer constant v.
func IsConstInt(e Expr, v int64) bool {
	got, ok := ImmValue(e)
	return ok && got == v
}

// IsZero reports whether e is a zero constant of any numeric type.
func IsZero(e Expr) bool {
	switch imm := e.(type) {
	case *IntImm:
		return imm.Value == 0
	case *FloatImm:
		return imm.Value == 0
	case *BoolImm:
		return !imm.Value
	}
	return false
}
