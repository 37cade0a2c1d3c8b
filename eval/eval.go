// Package eval interprets expressions over concrete values. It backs
// the test suites: rewritten expressions, domains and tensor programs
// are checked against their originals point by point instead of
// relying on the simplifier to prove them equal.
package eval

import (
	"fmt"
	"strconv"

	"github.com/sgrechanik-h/zeroelim/expr"
)

// Value is one concrete scalar tagged with its expression type.
type Value struct {
	typ expr.DType
	i   int64
	f   float64
	b   bool
}

// IntValue wraps an integer of the given integer type.
func IntValue(t expr.DType, v int64) Value { return Value{typ: t, i: v} }

// FloatValue wraps a float of the given float type.
func FloatValue(t expr.DType, v float64) Value { return Value{typ: t, f: v} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{typ: expr.Bool, b: v} }

// Type returns the expression type the value carries.
func (v Value) Type() expr.DType { return v.typ }

// Int returns the integer payload. Only meaningful for integer values.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload. Only meaningful for float values.
func (v Value) Float() float64 { return v.f }

// Bool returns the bool payload. Only meaningful for bool values.
func (v Value) Bool() bool { return v.b }

// Equal compares two values exactly. Values of different kinds
// (integer vs float vs bool) are never equal.
func (v Value) Equal(o Value) bool {
	switch {
	case v.typ == expr.Bool && o.typ == expr.Bool:
		return v.b == o.b
	case v.typ.IsInt() && o.typ.IsInt():
		return v.i == o.i
	case v.typ.IsFloat() && o.typ.IsFloat():
		return v.f == o.f
	}
	return false
}

func (v Value) String() string {
	switch {
	case v.typ == expr.Bool:
		return strconv.FormatBool(v.b)
	case v.typ.IsFloat():
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return strconv.FormatInt(v.i, 10)
	}
}

// Env binds variables to values.
type Env map[*expr.Var]Value

// Clone returns a shallow copy.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Resolver evaluates output valueIndex of a tensor at integer indices.
// Eval calls it for every Call node; a nil resolver makes Call nodes an
// error.
type Resolver func(id expr.TensorID, valueIndex int, args []int64) (Value, error)

// Eval computes the value of e under env. Tensor calls are delegated
// to the resolver. Select evaluates only the taken branch, so guarded
// divisions do not fault.
func Eval(e expr.Expr, env Env, calls Resolver) (Value, error) {
	ev := &evaluator{env: env, calls: calls}
	return ev.eval(e)
}

// EvalInt evaluates e and requires an integer result.
func EvalInt(e expr.Expr, env Env, calls Resolver) (int64, error) {
	v, err := Eval(e, env, calls)
	if err != nil {
		return 0, err
	}
	if !v.typ.IsInt() {
		return 0, fmt.Errorf("eval: expected an integer, got %s of type %s", v, v.typ)
	}
	return v.i, nil
}

type evaluator struct {
	env   Env
	calls Resolver
}

func (ev *evaluator) eval(e expr.Expr) (Value, error) {
	switch n := e.(type) {
	case *expr.Var:
		v, ok := ev.env[n]
		if !ok {
			return Value{}, fmt.Errorf("eval: unbound variable %s", n.Name)
		}
		return v, nil
	case *expr.IntImm:
		return IntValue(n.Type, n.Value), nil
	case *expr.FloatImm:
		return FloatValue(n.Type, n.Value), nil
	case *expr.BoolImm:
		return BoolValue(n.Value), nil

	case *expr.Add:
		return ev.arith(n.A, n.B, func(x, y int64) (int64, error) { return x + y, nil },
			func(x, y float64) float64 { return x + y })
	case *expr.Sub:
		return ev.arith(n.A, n.B, func(x, y int64) (int64, error) { return x - y, nil },
			func(x, y float64) float64 { return x - y })
	case *expr.Mul:
		return ev.arith(n.A, n.B, func(x, y int64) (int64, error) { return x * y, nil },
			func(x, y float64) float64 { return x * y })
	case *expr.Div:
		return ev.arith(n.A, n.B, func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("eval: division by zero")
			}
			return x / y, nil
		}, func(x, y float64) float64 { return x / y })
	case *expr.Mod:
		return ev.intArith(n.A, n.B, func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("eval: modulo by zero")
			}
			return x % y, nil
		})
	case *expr.FloorDiv:
		return ev.intArith(n.A, n.B, func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("eval: division by zero")
			}
			return floorDiv(x, y), nil
		})
	case *expr.FloorMod:
		return ev.intArith(n.A, n.B, func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("eval: modulo by zero")
			}
			return x - floorDiv(x, y)*y, nil
		})
	case *expr.Min:
		return ev.arith(n.A, n.B, func(x, y int64) (int64, error) { return min64(x, y), nil },
			func(x, y float64) float64 {
				if x < y {
					return x
				}
				return y
			})
	case *expr.Max:
		return ev.arith(n.A, n.B, func(x, y int64) (int64, error) { return max64(x, y), nil },
			func(x, y float64) float64 {
				if x > y {
					return x
				}
				return y
			})

	case *expr.EQ:
		return ev.compare(n.A, n.B, func(c int) bool { return c == 0 })
	case *expr.NE:
		return ev.compare(n.A, n.B, func(c int) bool { return c != 0 })
	case *expr.LT:
		return ev.compare(n.A, n.B, func(c int) bool { return c < 0 })
	case *expr.LE:
		return ev.compare(n.A, n.B, func(c int) bool { return c <= 0 })
	case *expr.GT:
		return ev.compare(n.A, n.B, func(c int) bool { return c > 0 })
	case *expr.GE:
		return ev.compare(n.A, n.B, func(c int) bool { return c >= 0 })

	case *expr.And:
		return ev.logic(n.A, n.B, func(x, y bool) bool { return x && y })
	case *expr.Or:
		return ev.logic(n.A, n.B, func(x, y bool) bool { return x || y })
	case *expr.Not:
		a, err := ev.eval(n.A)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(!a.b), nil

	case *expr.Select:
		c, err := ev.eval(n.Cond)
		if err != nil {
			return Value{}, err
		}
		if c.b {
			return ev.eval(n.Then)
		}
		return ev.eval(n.Else)

	case *expr.Cast:
		v, err := ev.eval(n.Value)
		if err != nil {
			return Value{}, err
		}
		return cast(n.Type, v), nil

	case *expr.Call:
		if ev.calls == nil {
			return Value{}, fmt.Errorf("eval: no resolver for tensor call %s", n.Name)
		}
		args := make([]int64, len(n.Args))
		for i, a := range n.Args {
			idx, err := ev.eval(a)
			if err != nil {
				return Value{}, err
			}
			if !idx.typ.IsInt() {
				return Value{}, fmt.Errorf("eval: non-integer index in call to %s", n.Name)
			}
			args[i] = idx.i
		}
		return ev.calls(n.Tensor, n.ValueIndex, args)

	case *expr.Reduce:
		return ev.reduce(n)
	}
	return Value{}, fmt.Errorf("eval: unhandled node %T", e)
}

func (ev *evaluator) arith(a, b expr.Expr, fi func(x, y int64) (int64, error), ff func(x, y float64) float64) (Value, error) {
	x, err := ev.eval(a)
	if err != nil {
		return Value{}, err
	}
	y, err := ev.eval(b)
	if err != nil {
		return Value{}, err
	}
	if x.typ.IsFloat() {
		return FloatValue(x.typ, ff(x.f, y.f)), nil
	}
	r, err := fi(x.i, y.i)
	if err != nil {
		return Value{}, err
	}
	return IntValue(x.typ, r), nil
}

func (ev *evaluator) intArith(a, b expr.Expr, f func(x, y int64) (int64, error)) (Value, error) {
	x, err := ev.eval(a)
	if err != nil {
		return Value{}, err
	}
	y, err := ev.eval(b)
	if err != nil {
		return Value{}, err
	}
	r, err := f(x.i, y.i)
	if err != nil {
		return Value{}, err
	}
	return IntValue(x.typ, r), nil
}

func (ev *evaluator) compare(a, b expr.Expr, f func(c int) bool) (Value, error) {
	x, err := ev.eval(a)
	if err != nil {
		return Value{}, err
	}
	y, err := ev.eval(b)
	if err != nil {
		return Value{}, err
	}
	var c int
	if x.typ.IsFloat() {
		switch {
		case x.f < y.f:
			c = -1
		case x.f > y.f:
			c = 1
		}
	} else {
		switch {
		case x.i < y.i:
			c = -1
		case x.i > y.i:
			c = 1
		}
	}
	return BoolValue(f(c)), nil
}

func (ev *evaluator) logic(a, b expr.Expr, f func(x, y bool) bool) (Value, error) {
	x, err := ev.eval(a)
	if err != nil {
		return Value{}, err
	}
	y, err := ev.eval(b)
	if err != nil {
		return Value{}, err
	}
	return BoolValue(f(x.b, y.b)), nil
}

func (ev *evaluator) reduce(n *expr.Reduce) (Value, error) {
	c := n.Combiner
	acc := make([]Value, c.Arity())
	for i, id := range c.Identity {
		v, err := ev.eval(id)
		if err != nil {
			return Value{}, err
		}
		acc[i] = v
	}

	// Axis and combiner variables shadow outer bindings inside the
	// reduction body, so iterate on a private copy of the environment.
	inner := &evaluator{env: ev.env.Clone(), calls: ev.calls}
	if err := inner.iterAxes(n, 0, acc); err != nil {
		return Value{}, err
	}
	return acc[n.ValueIndex], nil
}

// iterAxes walks the iteration space of the reduction depth first,
// folding every point where the condition holds into acc in place.
func (ev *evaluator) iterAxes(n *expr.Reduce, depth int, acc []Value) error {
	if depth < len(n.Axes) {
		iv := n.Axes[depth]
		minV, err := ev.eval(iv.Range.Min)
		if err != nil {
			return err
		}
		extV, err := ev.eval(iv.Range.Extent)
		if err != nil {
			return err
		}
		for x := minV.i; x < minV.i+extV.i; x++ {
			ev.env[iv.Var] = IntValue(iv.Var.Type, x)
			if err := ev.iterAxes(n, depth+1, acc); err != nil {
				return err
			}
		}
		delete(ev.env, iv.Var)
		return nil
	}

	cond, err := ev.eval(n.Condition)
	if err != nil {
		return err
	}
	if !cond.b {
		return nil
	}
	c := n.Combiner
	vals := make([]Value, len(n.Source))
	for i, src := range n.Source {
		v, err := ev.eval(src)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	for i := range n.Source {
		ev.env[c.Lhs[i]] = acc[i]
		ev.env[c.Rhs[i]] = vals[i]
	}
	next := make([]Value, len(acc))
	for i, res := range c.Result {
		v, err := ev.eval(res)
		if err != nil {
			return err
		}
		next[i] = v
	}
	copy(acc, next)
	for i := range n.Source {
		delete(ev.env, c.Lhs[i])
		delete(ev.env, c.Rhs[i])
	}
	return nil
}

func cast(t expr.DType, v Value) Value {
	switch {
	case t == expr.Bool:
		switch {
		case v.typ == expr.Bool:
			return v
		case v.typ.IsFloat():
			return BoolValue(v.f != 0)
		default:
			return BoolValue(v.i != 0)
		}
	case t.IsFloat():
		switch {
		case v.typ == expr.Bool:
			return FloatValue(t, b2f(v.b))
		case v.typ.IsFloat():
			return FloatValue(t, v.f)
		default:
			return FloatValue(t, float64(v.i))
		}
	default:
		switch {
		case v.typ == expr.Bool:
			return IntValue(t, int64(b2f(v.b)))
		case v.typ.IsFloat():
			return IntValue(t, int64(v.f))
		default:
			return IntValue(t, v.i)
		}
	}
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// floorDiv matches the FloorDiv node: round toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
