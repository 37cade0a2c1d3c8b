// Package tensor represents programs as arenas of tensor definitions:
// placeholders holding external data and computed tensors whose bodies
// are expressions over their output axes. Tensors reference each other
// through Call nodes by id, and a body may only call tensors created
// before it, so a program is acyclic by construction. The package also
// carries the program-level rewrites of the optimizer: inlining calls,
// extracting subexpressions and reductions into new tensors, and the
// cost model that decides whether a rewrite pays off.
package tensor

import (
	"fmt"

	"github.com/sgrechanik-h/zeroelim/expr"
)

// Tensor is one definition in a program. A placeholder has a nil Body
// and produces a single output of type Type; a computed tensor has one
// body expression per output, all over the same Axes.
type Tensor struct {
	ID   expr.TensorID
	Name string
	Axes []*expr.IterVar
	Body []expr.Expr
	Type expr.DType
}

// IsPlaceholder reports whether the tensor holds external data.
func (t *Tensor) IsPlaceholder() bool { return t.Body == nil }

// Outputs is the number of values the tensor produces per point.
func (t *Tensor) Outputs() int {
	if t.IsPlaceholder() {
		return 1
	}
	return len(t.Body)
}

// OutType is the element type of output valueIndex.
func (t *Tensor) OutType(valueIndex int) expr.DType {
	if t.IsPlaceholder() {
		return t.Type
	}
	return t.Body[valueIndex].DType()
}

// At references output 0 of the tensor at the given indices.
func (t *Tensor) At(args ...expr.Expr) *expr.Call {
	return t.Out(0, args...)
}

// Out references output valueIndex of the tensor at the given indices.
func (t *Tensor) Out(valueIndex int, args ...expr.Expr) *expr.Call {
	if len(args) != len(t.Axes) {
		panic(fmt.Sprintf("tensor: %s has %d axes, called with %d arguments",
			t.Name, len(t.Axes), len(args)))
	}
	return expr.NewCall(t.OutType(valueIndex), t.Name, t.ID, args, valueIndex)
}

// Program is an append-only arena of tensors. The zero value is not
// usable; create programs with NewProgram.
type Program struct {
	tensors []*Tensor
}

func NewProgram() *Program {
	return &Program{}
}

// Len is the number of tensors defined so far.
func (p *Program) Len() int { return len(p.tensors) }

// Tensor returns the definition with the given id, or nil.
func (p *Program) Tensor(id expr.TensorID) *Tensor {
	if id < 0 || int(id) >= len(p.tensors) {
		return nil
	}
	return p.tensors[id]
}

// Placeholder appends an input tensor of element type t whose axis d
// covers [0, extents[d]).
func (p *Program) Placeholder(name string, t expr.DType, extents ...int64) *Tensor {
	axes := make([]*expr.IterVar, len(extents))
	for d, n := range extents {
		axes[d] = expr.NewIterVar(fmt.Sprintf("%s_i%d", name, d), 0, n)
	}
	tn := &Tensor{ID: expr.TensorID(len(p.tensors)), Name: name, Axes: axes, Type: t}
	p.tensors = append(p.tensors, tn)
	return tn
}

// Compute appends a tensor computing the given bodies over axes.
func (p *Program) Compute(name string, axes []*expr.IterVar, body ...expr.Expr) *Tensor {
	if len(body) == 0 {
		panic("tensor: compute with no body")
	}
	tn := &Tensor{ID: expr.TensorID(len(p.tensors)), Name: name, Axes: axes, Body: body}
	p.tensors = append(p.tensors, tn)
	return tn
}

// TensorDef describes a tensor for the evaluator: it has the shape of
// an eval.TensorDefFunc, so a program can be evaluated with
// eval.NewProgramEvaluator(p.TensorDef).
func (p *Program) TensorDef(id expr.TensorID) (axes []*expr.IterVar, values []expr.Expr, ok bool) {
	t := p.Tensor(id)
	if t == nil {
		return nil, nil, false
	}
	return t.Axes, t.Body, true
}

// Validate checks the structural invariants of the program: ids match
// arena positions, bodies only call earlier tensors, and every call
// matches its callee's axis count and output count.
func (p *Program) Validate() error {
	for i, t := range p.tensors {
		if t.ID != expr.TensorID(i) {
			return fmt.Errorf("tensor %d (%s) has id %d", i, t.Name, t.ID)
		}
		if t.IsPlaceholder() {
			continue
		}
		for vi, body := range t.Body {
			if err := p.validateCalls(t, body); err != nil {
				return fmt.Errorf("tensor %d (%s) output %d: %v", i, t.Name, vi, err)
			}
		}
	}
	return nil
}

func (p *Program) validateCalls(t *Tensor, body expr.Expr) error {
	var err error
	expr.Walk(body, func(e expr.Expr) bool {
		if err != nil {
			return false
		}
		c, ok := e.(*expr.Call)
		if !ok {
			return true
		}
		callee := p.Tensor(c.Tensor)
		switch {
		case callee == nil:
			err = fmt.Errorf("call to unknown tensor %d", c.Tensor)
		case c.Tensor >= t.ID:
			err = fmt.Errorf("call to tensor %d does not precede the caller", c.Tensor)
		case len(c.Args) != len(callee.Axes):
			err = fmt.Errorf("call to %s with %d arguments, want %d",
				callee.Name, len(c.Args), len(callee.Axes))
		case c.ValueIndex < 0 || c.ValueIndex >= callee.Outputs():
			err = fmt.Errorf("call to output %d of %s, which has %d",
				c.ValueIndex, callee.Name, callee.Outputs())
		}
		return err == nil
	})
	return err
}

// FromExpr appends a tensor computing e over the given axes. The axes
// are cloned so the new tensor never shares iteration variables with
// the expression's original context; range bounds may reference earlier
// axes and are rewritten through the same renaming. A reduction body
// with several slots becomes one output per slot.
func FromExpr(p *Program, e expr.Expr, axes []*expr.IterVar, name string) *Tensor {
	vmap := make(map[*expr.Var]expr.Expr, len(axes))
	newAxes := make([]*expr.IterVar, len(axes))
	for i, ax := range axes {
		fresh := expr.NewTypedVar(ax.Var.Name, ax.Var.Type)
		newAxes[i] = &expr.IterVar{Var: fresh, Range: expr.SubstituteInRange(ax.Range, vmap)}
		vmap[ax.Var] = fresh
	}
	body := expr.Substitute(e, vmap)

	if red, ok := body.(*expr.Reduce); ok && len(red.Source) > 1 {
		bodies := make([]expr.Expr, len(red.Source))
		for i := range red.Source {
			bodies[i] = expr.NewReduce(red.Combiner, red.Source, red.Axes, red.Condition, i)
		}
		return p.Compute(name, newAxes, bodies...)
	}
	return p.Compute(name, newAxes, body)
}

// TransformBody applies f to every output of t and appends the result
// as a new tensor with cloned axes. The second result is false when f
// left every output unchanged, in which case t itself is returned.
func TransformBody(p *Program, t *Tensor, f func(body expr.Expr, axes []*expr.IterVar) expr.Expr) (*Tensor, bool) {
	if t.IsPlaceholder() {
		return t, false
	}
	newBody := make([]expr.Expr, len(t.Body))
	changed := false
	for i, body := range t.Body {
		newBody[i] = f(body, t.Axes)
		if !expr.Equal(newBody[i], body) {
			changed = true
		}
	}
	if !changed {
		return t, false
	}

	vmap := make(map[*expr.Var]expr.Expr, len(t.Axes))
	axes := make([]*expr.IterVar, len(t.Axes))
	for i, ax := range t.Axes {
		fresh := expr.NewTypedVar(ax.Var.Name, ax.Var.Type)
		axes[i] = &expr.IterVar{Var: fresh, Range: expr.SubstituteInRange(ax.Range, vmap)}
		vmap[ax.Var] = fresh
	}
	for i, body := range newBody {
		newBody[i] = expr.Substitute(body, vmap)
	}
	return p.Compute(t.Name, axes, newBody...), true
}
