package tensor

import (
	"github.com/sgrechanik-h/zeroelim/expr"
	"github.com/sgrechanik-h/zeroelim/logger"
)

// inlineCall substitutes the body of the called tensor for the call,
// mapping the callee's axes to the call arguments. Inlined reductions
// get fresh axis variables. Placeholder calls cannot be inlined.
func inlineCall(p *Program, c *expr.Call) (expr.Expr, bool) {
	t := p.Tensor(c.Tensor)
	if t == nil || t.IsPlaceholder() {
		return nil, false
	}
	m := make(map[*expr.Var]expr.Expr, len(t.Axes))
	for i, ax := range t.Axes {
		m[ax.Var] = c.Args[i]
	}
	return expr.CloneReduction(expr.Substitute(t.Body[c.ValueIndex], m)), true
}

// IsReductionTensor reports whether the tensor's body is a reduction.
func IsReductionTensor(p *Program, id expr.TensorID) bool {
	t := p.Tensor(id)
	if t == nil || t.IsPlaceholder() {
		return false
	}
	_, ok := t.Body[0].(*expr.Reduce)
	return ok
}

// InlineTailCall collapses pass-through tensors: when an output of t is
// exactly a call to another computed tensor, the callee's body replaces
// the call. The second result is false when no output changed.
func InlineTailCall(p *Program, t *Tensor) (*Tensor, bool) {
	return TransformBody(p, t, func(body expr.Expr, _ []*expr.IterVar) expr.Expr {
		if c, ok := body.(*expr.Call); ok {
			if inlined, ok := inlineCall(p, c); ok {
				return inlined
			}
		}
		return body
	})
}

// InlineTensors replaces calls to the given tensors with their bodies
// until none remain. A nil target list means every computed tensor.
// Calls to reduction tensors stay unless inlineReductions is set;
// placeholder calls always stay. Each pass only introduces calls to
// tensors with smaller ids, so the loop terminates.
func InlineTensors(p *Program, e expr.Expr, targets []expr.TensorID, inlineReductions bool) expr.Expr {
	var allowed map[expr.TensorID]bool
	if len(targets) > 0 {
		allowed = make(map[expr.TensorID]bool, len(targets))
		for _, id := range targets {
			allowed[id] = true
		}
	}
	for {
		out, changed := inlinePass(p, e, allowed, inlineReductions)
		if !changed {
			return out
		}
		e = out
	}
}

// InlineTensorsInBody applies InlineTensors to every output of t.
func InlineTensorsInBody(p *Program, t *Tensor, targets []expr.TensorID, inlineReductions bool) (*Tensor, bool) {
	return TransformBody(p, t, func(body expr.Expr, _ []*expr.IterVar) expr.Expr {
		return InlineTensors(p, body, targets, inlineReductions)
	})
}

func inlinePass(p *Program, e expr.Expr, allowed map[expr.TensorID]bool, inlineReductions bool) (expr.Expr, bool) {
	log := logger.Logger()
	changed := false
	var rewrite func(expr.Expr) expr.Expr
	rewrite = func(e expr.Expr) expr.Expr {
		e = expr.MapChildren(e, rewrite)
		c, ok := e.(*expr.Call)
		if !ok {
			return e
		}
		if allowed != nil && !allowed[c.Tensor] {
			return e
		}
		if !inlineReductions && IsReductionTensor(p, c.Tensor) {
			return e
		}
		inlined, ok := inlineCall(p, c)
		if !ok {
			return e
		}
		changed = true
		log.Trace().Str("tensor", c.Name).Msg("inlined call")
		return inlined
	}
	return rewrite(e), changed
}
