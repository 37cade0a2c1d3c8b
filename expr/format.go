package expr

import (
	"fmt"
	"strconv"
	"strings"
)

func (v *Var) String() string      { return v.Name }
func (e *IntImm) String() string   { return strconv.FormatInt(e.Value, 10) }
func (e *FloatImm) String() string { return strconv.FormatFloat(e.Value, 'g', -1, 64) + "f" }

func (e *BoolImm) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

func (e *Add) String() string      { return infix(e.A, "+", e.B) }
func (e *Sub) String() string      { return infix(e.A, "-", e.B) }
func (e *Mul) String() string      { return infix(e.A, "*", e.B) }
func (e *Div) String() string      { return infix(e.A, "/", e.B) }
func (e *Mod) String() string      { return infix(e.A, "%", e.B) }
func (e *FloorDiv) String() string { return call2("floordiv", e.A, e.B) }
func (e *FloorMod) String() string { return call2("floormod", e.A, e.B) }
func (e *Min) String() string      { return call2("min", e.A, e.B) }
func (e *Max) String() string      { return call2("max", e.A, e.B) }

func (e *EQ) String() string { return infix(e.A, "==", e.B) }
func (e *NE) String() string { return infix(e.A, "!=", e.B) }
func (e *LT) String() string { return infix(e.A, "<", e.B) }
func (e *LE) String() string { return infix(e.A, "<=", e.B) }
func (e *GT) String() string { return infix(e.A, ">", e.B) }
func (e *GE) String() string { return infix(e.A, ">=", e.B) }

func (e *And) String() string { return infix(e.A, "&&", e.B) }
func (e *Or) String() string  { return infix(e.A, "||", e.B) }
func (e *Not) String() string { return "!" + e.A.String() }

func (e *Select) String() string {
	return fmt.Sprintf("select(%s, %s, %s)", e.Cond, e.Then, e.Else)
}

func (e *Cast) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.Value)
}

func (e *Call) String() string {
	var sb strings.Builder
	sb.WriteString(e.Name)
	sb.WriteByte('(')
	for i, a := range e.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	if e.ValueIndex != 0 {
		fmt.Fprintf(&sb, ".v%d", e.ValueIndex)
	}
	return sb.String()
}

func (e *Reduce) String() string {
	var sb strings.Builder
	sb.WriteString("reduce(")
	sb.WriteString(e.Combiner.Name)
	sb.WriteString(", [")
	for i, s := range e.Source {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.String())
	}
	sb.WriteString("], axis=[")
	for i, ax := range e.Axes {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s%s", ax.Var.Name, ax.Range)
	}
	sb.WriteByte(']')
	if !isTrue(e.Condition) {
		fmt.Fprintf(&sb, ", where=%s", e.Condition)
	}
	if e.ValueIndex != 0 {
		fmt.Fprintf(&sb, ", value=%d", e.ValueIndex)
	}
	sb.WriteByte(')')
	return sb.String()
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s+%s)", r.Min, r.Min, r.Extent)
}

func isTrue(e Expr) bool {
	b, ok := e.(*BoolImm)
	return ok && b.Value
}

func infix(a Expr, op string, b Expr) string {
	return fmt.Sprintf("(%s %s %s)", a, op, b)
}

func call2(name string, a, b Expr) string {
	return fmt.Sprintf("%s(%s, %s)", name, a, b)
}
