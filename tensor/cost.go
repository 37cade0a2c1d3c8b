package tensor

import (
	"github.com/sgrechanik-h/zeroelim/arith"
	"github.com/sgrechanik-h/zeroelim/expr"
)

// Relative per-scalar-operation weights of the cost model. The
// absolute scale is meaningless; the optimizer only compares costs.
const (
	CostOfArith  = 1
	CostOfDivMod = 4
	CostOfSelect = 1
	CostOfLoad   = 2
)

// unknownExtent stands in for axis extents the analyzer cannot reduce
// to a constant, so symbolic shapes still yield comparable costs.
const unknownExtent = 100

// EstimateCost estimates the work needed to materialize t and every
// computed tensor it transitively calls. Each tensor is counted once,
// matching evaluation with memoized intermediates; a call costs a load
// plus its argument expressions. Placeholders cost nothing, their data
// already exists.
func EstimateCost(p *Program, t *Tensor) int64 {
	ce := &costEstimator{
		p:    p,
		an:   arith.NewAnalyzer(nil),
		memo: make(map[expr.TensorID]int64),
	}
	return ce.tensor(t.ID)
}

type costEstimator struct {
	p    *Program
	an   *arith.Analyzer
	memo map[expr.TensorID]int64
}

func (ce *costEstimator) tensor(id expr.TensorID) int64 {
	if c, ok := ce.memo[id]; ok {
		return c
	}
	// Break accidental cycles; Validate rejects them separately.
	ce.memo[id] = 0

	t := ce.p.Tensor(id)
	if t == nil || t.IsPlaceholder() {
		return 0
	}
	callees := make(map[expr.TensorID]bool)
	var perPoint int64
	for _, body := range t.Body {
		perPoint += ce.expr(body, callees)
	}
	total := perPoint * ce.volume(t.Axes)
	for callee := range callees {
		total += ce.tensor(callee)
	}
	ce.memo[id] = total
	return total
}

func (ce *costEstimator) volume(axes []*expr.IterVar) int64 {
	vol := int64(1)
	for _, ax := range axes {
		vol *= ce.extent(ax.Range.Extent)
	}
	return vol
}

func (ce *costEstimator) extent(e expr.Expr) int64 {
	if v, ok := expr.ImmValue(ce.an.Simplify(e)); ok && v >= 0 {
		return v
	}
	return unknownExtent
}

func (ce *costEstimator) expr(e expr.Expr, callees map[expr.TensorID]bool) int64 {
	var cost int64
	switch n := e.(type) {
	case *expr.Var, *expr.IntImm, *expr.FloatImm, *expr.BoolImm:
		return 0
	case *expr.Div, *expr.Mod, *expr.FloorDiv, *expr.FloorMod:
		cost = CostOfDivMod
	case *expr.Select:
		cost = CostOfSelect
	case *expr.Call:
		callees[n.Tensor] = true
		cost = CostOfLoad
	case *expr.Reduce:
		per := ce.expr(n.Condition, callees)
		for _, s := range n.Source {
			per += ce.expr(s, callees)
		}
		for _, r := range n.Combiner.Result {
			per += ce.expr(r, callees)
		}
		return per * ce.volume(n.Axes)
	default:
		cost = CostOfArith
	}
	children := int64(0)
	expr.Walk(e, func(c expr.Expr) bool {
		if c == e {
			return true
		}
		children += ce.expr(c, callees)
		return false
	})
	return cost + children
}
